// Package array groups unified elements into per-locus CRISPR arrays in
// genomic order and derives each array's orientation and subtype.
package array

import (
	"sort"

	"crisprcore/pkg/domain"
)

// Element is one repeat or spacer at a fixed position of an array.
type Element struct {
	Index    int             `json:"index"`
	Category domain.Category `json:"category"`
	Sequence string          `json:"sequence"`
	RegionID string          `json:"region_id"`
	Start    int             `json:"start"`
}

// IsRepeat reports whether the element is a repeat.
func (e Element) IsRepeat() bool { return e.Category == domain.CategoryRepeat }

// IsSpacer reports whether the element is a spacer.
func (e Element) IsSpacer() bool { return e.Category == domain.CategorySpacer }

// Array is the ordered element list of one locus. Subtype is empty when no
// determinate subtype could be assigned.
type Array struct {
	LocusID     string             `json:"locus_id"`
	Orientation domain.Orientation `json:"orientation"`
	Subtype     string             `json:"subtype,omitempty"`
	Elements    []Element          `json:"elements"`
}

// HasSubtype reports whether the array carries a registered subtype.
func (a Array) HasSubtype() bool { return a.Subtype != "" }

// At returns the element at index i.
func (a Array) At(i int) (Element, bool) {
	if i < 0 || i >= len(a.Elements) {
		return Element{}, false
	}
	return a.Elements[i], true
}

// Repeats returns the repeat elements in genomic order.
func (a Array) Repeats() []Element { return a.filter(domain.CategoryRepeat) }

// Spacers returns the spacer elements in genomic order.
func (a Array) Spacers() []Element { return a.filter(domain.CategorySpacer) }

func (a Array) filter(c domain.Category) []Element {
	var out []Element
	for _, el := range a.Elements {
		if el.Category == c {
			out = append(out, el)
		}
	}
	return out
}

// SubtypeFilter reports whether a class label names a known subtype.
type SubtypeFilter func(label string) bool

// Build groups elements by locus, sorts each group by region start and
// assigns positional indexes. Arrays are returned in locus id order. A group
// receives a subtype only when all of its non-null labels agree and known
// accepts the label.
func Build(elements []domain.UnifiedElement, known SubtypeFilter) []Array {
	groups := make(map[string][]domain.UnifiedElement)
	var ids []string
	for _, el := range elements {
		if _, seen := groups[el.LocusID]; !seen {
			ids = append(ids, el.LocusID)
		}
		groups[el.LocusID] = append(groups[el.LocusID], el)
	}
	domain.SortIDs(ids)

	arrays := make([]Array, 0, len(ids))
	for _, id := range ids {
		arrays = append(arrays, buildOne(id, groups[id], known))
	}
	return arrays
}

func buildOne(locusID string, rows []domain.UnifiedElement, known SubtypeFilter) Array {
	sorted := make([]domain.UnifiedElement, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RegionStart < sorted[j].RegionStart })

	a := Array{
		LocusID:     locusID,
		Orientation: sorted[0].Orientation,
		Elements:    make([]Element, len(sorted)),
	}
	for i, row := range sorted {
		a.Elements[i] = Element{
			Index:    i,
			Category: row.RegionCategory,
			Sequence: row.RegionSequence,
			RegionID: row.RegionID,
			Start:    row.RegionStart,
		}
	}
	a.Subtype = determineSubtype(sorted, known)
	return a
}

func determineSubtype(rows []domain.UnifiedElement, known SubtypeFilter) string {
	var label string
	for _, row := range rows {
		if row.ClassLabel == nil {
			continue
		}
		switch {
		case label == "":
			label = *row.ClassLabel
		case label != *row.ClassLabel:
			return ""
		}
	}
	if label == "" || known == nil || !known(label) {
		return ""
	}
	return label
}
