package crrna

import (
	"strings"

	"crisprcore/pkg/domain"
)

// UndeterminedLabel marks a repeat with no known class label.
const UndeterminedLabel = "Undetermined"

// RepeatRecord is one unique repeat sequence with the class labels seen for it.
type RepeatRecord struct {
	Sequence string   `json:"sequence"`
	Subtypes []string `json:"subtypes,omitempty"`
}

// Label joins the subtypes with commas, or returns UndeterminedLabel.
func (r RepeatRecord) Label() string {
	if len(r.Subtypes) == 0 {
		return UndeterminedLabel
	}
	return strings.Join(r.Subtypes, ",")
}

// Repeats lists every unique repeat sequence in first-appearance order across
// all elements, typed arrays or not.
func Repeats(elements []domain.UnifiedElement) []RepeatRecord {
	index := make(map[string]int)
	var sets []map[string]struct{}
	var out []RepeatRecord
	for _, el := range elements {
		if el.RegionCategory != domain.CategoryRepeat {
			continue
		}
		i, ok := index[el.RegionSequence]
		if !ok {
			i = len(out)
			index[el.RegionSequence] = i
			out = append(out, RepeatRecord{Sequence: el.RegionSequence})
			sets = append(sets, make(map[string]struct{}))
		}
		if el.ClassLabel != nil {
			sets[i][*el.ClassLabel] = struct{}{}
		}
	}
	for i := range out {
		if len(sets[i]) > 0 {
			out[i].Subtypes = sortedKeys(sets[i])
		}
	}
	return out
}

// CountUnique returns the number of distinct repeat and spacer sequences.
func CountUnique(elements []domain.UnifiedElement) (repeats, spacers int) {
	seenRepeat := make(map[string]struct{})
	seenSpacer := make(map[string]struct{})
	for _, el := range elements {
		switch el.RegionCategory {
		case domain.CategoryRepeat:
			seenRepeat[el.RegionSequence] = struct{}{}
		case domain.CategorySpacer:
			seenSpacer[el.RegionSequence] = struct{}{}
		}
	}
	return len(seenRepeat), len(seenSpacer)
}
