// Package dataset turns the raw record collections into the unified,
// orientation-corrected element dataset consumed by the array builder.
package dataset

import (
	"crisprcore/pkg/domain"
)

// PlaceholderClass is the generic cluster label that carries no subtype.
const PlaceholderClass = "CAS"

// ClassifiedRow is a classification record joined to its strain.
type ClassifiedRow struct {
	SequenceID string
	StrainID   string
	ClassLabel *string
}

// Classification maps a sequence id to its trusted class label.
type Classification map[string]string

// Label returns the class label for the sequence, if any.
func (c Classification) Label(sequenceID string) (string, bool) {
	label, ok := c[sequenceID]
	return label, ok
}

// JoinStrains inner-joins classification records to sequence-strain records
// on sequence id. Record order is preserved; a sequence listed under several
// strains yields one row per strain.
func JoinStrains(records []domain.ClassificationRecord, strains []domain.SequenceStrain) []ClassifiedRow {
	bySequence := make(map[string][]string, len(strains))
	for _, s := range strains {
		bySequence[s.SequenceID] = append(bySequence[s.SequenceID], s.StrainID)
	}
	rows := make([]ClassifiedRow, 0, len(records))
	for _, rec := range records {
		for _, strain := range bySequence[rec.SequenceID] {
			rows = append(rows, ClassifiedRow{SequenceID: rec.SequenceID, StrainID: strain, ClassLabel: rec.ClassLabel})
		}
	}
	return rows
}

// FilterConsistent applies the two consistency filters in order: per sequence
// exactly one non-null, non-placeholder label; then per strain exactly one
// label across the surviving rows. Running it on its own output is a no-op.
func FilterConsistent(rows []ClassifiedRow) []ClassifiedRow {
	bySequence := groupLabels(rows, func(r ClassifiedRow) string { return r.SequenceID })
	survivors := make([]ClassifiedRow, 0, len(rows))
	for _, r := range rows {
		g := bySequence[r.SequenceID]
		if g.distinct() != 1 || g.hasNull || g.first == PlaceholderClass {
			continue
		}
		survivors = append(survivors, r)
	}

	byStrain := groupLabels(survivors, func(r ClassifiedRow) string { return r.StrainID })
	out := make([]ClassifiedRow, 0, len(survivors))
	for _, r := range survivors {
		if byStrain[r.StrainID].distinct() != 1 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MergeClassifications joins, filters and collapses the classification data
// into a sequence lookup. An empty result is valid.
func MergeClassifications(records []domain.ClassificationRecord, strains []domain.SequenceStrain) Classification {
	rows := FilterConsistent(JoinStrains(records, strains))
	out := make(Classification, len(rows))
	for _, r := range rows {
		out[r.SequenceID] = *r.ClassLabel
	}
	return out
}

type labelGroup struct {
	labels  map[string]struct{}
	hasNull bool
	first   string
}

// distinct counts null as its own value.
func (g *labelGroup) distinct() int {
	n := len(g.labels)
	if g.hasNull {
		n++
	}
	return n
}

func groupLabels(rows []ClassifiedRow, key func(ClassifiedRow) string) map[string]*labelGroup {
	groups := make(map[string]*labelGroup)
	for _, r := range rows {
		k := key(r)
		g, ok := groups[k]
		if !ok {
			g = &labelGroup{labels: make(map[string]struct{})}
			groups[k] = g
		}
		if r.ClassLabel == nil {
			g.hasNull = true
			continue
		}
		if len(g.labels) == 0 {
			g.first = *r.ClassLabel
		}
		g.labels[*r.ClassLabel] = struct{}{}
	}
	return groups
}
