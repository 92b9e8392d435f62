// Package domain defines the record types shared by the table loaders, the
// dataset pipeline and the persistence backends.
package domain

import (
	"sort"
	"strconv"
)

// TableName identifies one of the raw record collections exposed by a loader.
type TableName string

const (
	TableRegion      TableName = "region"             // repeat/spacer sequences
	TableLocusRegion TableName = "crisprlocus_region" // region placement inside a locus
	TableLocus       TableName = "crisprlocus"        // locus calls
	TableClusterCas  TableName = "clustercas"         // cas cluster classifications
	TableSequence    TableName = "sequence"           // sequence to strain mapping
)

// ColumnEvidenceLevel is the locus column consulted by the evidence filter.
const ColumnEvidenceLevel = "crisprlocus_evidencelevel"

// KnownTables lists the collections the pipeline consumes, in load order.
var KnownTables = []TableName{TableRegion, TableLocusRegion, TableLocus, TableClusterCas, TableSequence}

// Category classifies a region inside an array.
type Category string

const (
	CategoryRepeat Category = "Repeat"
	CategorySpacer Category = "Spacer"
)

// Orientation is the strand code of a locus call.
type Orientation int

const (
	OrientationUnknown Orientation = 0
	OrientationForward Orientation = 1
	OrientationReverse Orientation = 2
)

func (o Orientation) String() string {
	switch o {
	case OrientationForward:
		return "Forward"
	case OrientationReverse:
		return "Reverse"
	default:
		return "Unknown"
	}
}

// Region is a repeat or spacer sequence. CategoryCode carries the raw numeric
// code from the database.
type Region struct {
	ID           string `json:"id"`
	Sequence     string `json:"sequence"`
	CategoryCode int    `json:"category"`
}

// Category maps the raw code to a category. Codes other than 1 and 3 are not
// part of an array and report false.
func (r Region) Category() (Category, bool) {
	switch r.CategoryCode {
	case 1:
		return CategoryRepeat, true
	case 3:
		return CategorySpacer, true
	default:
		return "", false
	}
}

// LocusRegionLink places a region inside a locus.
type LocusRegionLink struct {
	RegionID string `json:"region_id"`
	LocusID  string `json:"locus_id"`
	Start    int    `json:"start"`
	Length   int    `json:"length"`
}

// End returns the exclusive end coordinate.
func (l LocusRegionLink) End() int { return l.Start + l.Length }

// Locus is a CRISPR locus call on a genomic sequence. EvidenceLevel is nil
// when the database row carries no value.
type Locus struct {
	ID                   string            `json:"id"`
	SequenceID           string            `json:"sequence_id"`
	Start                int               `json:"start"`
	Length               int               `json:"length"`
	EvidenceLevel        *int              `json:"evidence_level,omitempty"`
	Orientation          Orientation       `json:"orientation"`
	PotentialOrientation Orientation       `json:"potential_orientation"`
	Attributes           map[string]string `json:"attributes,omitempty"`
}

// End returns the exclusive end coordinate.
func (l Locus) End() int { return l.Start + l.Length }

// ClassificationRecord assigns a cas cluster class to a sequence. A sequence
// may carry several records; a nil label is a database null.
type ClassificationRecord struct {
	SequenceID string  `json:"sequence_id"`
	ClassLabel *string `json:"class_label,omitempty"`
}

// SequenceStrain maps a genomic sequence to the strain it was read from.
type SequenceStrain struct {
	SequenceID string `json:"sequence_id"`
	StrainID   string `json:"strain_id"`
}

// Schema records the column names present per table in the source. A nil
// Schema means every modelled column is present.
type Schema map[TableName][]string

// HasColumn reports whether the table carries the column.
func (s Schema) HasColumn(table TableName, column string) bool {
	if s == nil {
		return true
	}
	cols, ok := s[table]
	if !ok {
		return false
	}
	for _, c := range cols {
		if c == column {
			return true
		}
	}
	return false
}

// Tables is a full snapshot of the five record collections.
type Tables struct {
	Regions         []Region               `json:"regions"`
	LocusRegions    []LocusRegionLink      `json:"locus_regions"`
	Loci            []Locus                `json:"loci"`
	Classifications []ClassificationRecord `json:"classifications"`
	SequenceStrains []SequenceStrain       `json:"sequence_strains"`
	Schema          Schema                 `json:"schema,omitempty"`
}

// Empty reports whether no collection holds any record.
func (t Tables) Empty() bool {
	return len(t.Regions) == 0 && len(t.LocusRegions) == 0 && len(t.Loci) == 0 &&
		len(t.Classifications) == 0 && len(t.SequenceStrains) == 0
}

// Clone returns a deep copy so callers can hand snapshots across store
// boundaries without sharing backing arrays.
func (t Tables) Clone() Tables {
	out := Tables{
		Regions:         append([]Region(nil), t.Regions...),
		LocusRegions:    append([]LocusRegionLink(nil), t.LocusRegions...),
		SequenceStrains: append([]SequenceStrain(nil), t.SequenceStrains...),
	}
	if t.Loci != nil {
		out.Loci = make([]Locus, len(t.Loci))
		for i, l := range t.Loci {
			if l.EvidenceLevel != nil {
				lvl := *l.EvidenceLevel
				l.EvidenceLevel = &lvl
			}
			if l.Attributes != nil {
				attrs := make(map[string]string, len(l.Attributes))
				for k, v := range l.Attributes {
					attrs[k] = v
				}
				l.Attributes = attrs
			}
			out.Loci[i] = l
		}
	}
	if t.Classifications != nil {
		out.Classifications = make([]ClassificationRecord, len(t.Classifications))
		for i, c := range t.Classifications {
			if c.ClassLabel != nil {
				label := *c.ClassLabel
				c.ClassLabel = &label
			}
			out.Classifications[i] = c
		}
	}
	if t.Schema != nil {
		out.Schema = make(Schema, len(t.Schema))
		for name, cols := range t.Schema {
			out.Schema[name] = append([]string(nil), cols...)
		}
	}
	return out
}

// CompareIDs orders identifiers numerically when both parse as integers and
// lexically otherwise. Database ids are integers rendered as text.
func CompareIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortIDs sorts ids in place using CompareIDs.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
