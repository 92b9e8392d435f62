package dump

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"crisprcore/pkg/domain"
)

// Column names of the decoded tables.
const (
	colRegionID       = "region_id"
	colRegionSequence = "region_sequence"
	colRegionCategory = "region_category"

	colLinkRegion = "crisprlocus_region_region"
	colLinkLocus  = "crisprlocus_region_crisprlocus"
	colLinkStart  = "crisprlocus_region_start"
	colLinkLength = "crisprlocus_region_length"

	colLocusID          = "crisprlocus_id"
	colLocusSequence    = "crisprlocus_sequence"
	colLocusStart       = "crisprlocus_start"
	colLocusLength      = "crisprlocus_length"
	colLocusOrientation = "crisprlocus_orientation"
	colLocusPotential   = "crisprlocus_potentialorientation"

	colClusterSequence = "clustercas_sequence"
	colClusterClass    = "clustercas_class"

	colSequenceID     = "sequence_id"
	colSequenceStrain = "sequence_strain"
)

var errNotInteger = errors.New("not an integer")

// Decode converts the known tables of d into domain records and records the
// column schema of every table it found. Tables missing from the dump decode
// to empty collections.
func Decode(d *Dump) (domain.Tables, error) {
	out := domain.Tables{Schema: domain.Schema{}}
	for _, name := range domain.KnownTables {
		t, ok := d.Table(string(name))
		if !ok {
			continue
		}
		out.Schema[name] = append([]string(nil), t.Columns...)
		var err error
		switch name {
		case domain.TableRegion:
			out.Regions, err = decodeRegions(t)
		case domain.TableLocusRegion:
			out.LocusRegions, err = decodeLinks(t)
		case domain.TableLocus:
			out.Loci, err = decodeLoci(t)
		case domain.TableClusterCas:
			out.Classifications, err = decodeClassifications(t)
		case domain.TableSequence:
			out.SequenceStrains, err = decodeStrains(t)
		}
		if err != nil {
			return domain.Tables{}, err
		}
	}
	return out, nil
}

// reader resolves column positions once per table.
type reader struct {
	table *Table
	pos   map[string]int
}

func newReader(t *Table, required ...string) (*reader, error) {
	r := &reader{table: t, pos: make(map[string]int, len(t.Columns))}
	for i, c := range t.Columns {
		r.pos[c] = i
	}
	for _, c := range required {
		if _, ok := r.pos[c]; !ok {
			return nil, &ParseError{Table: t.Name, Column: c, Err: errors.New("required column missing")}
		}
	}
	return r, nil
}

func (r *reader) value(row Row, col string) *string {
	i, ok := r.pos[col]
	if !ok || i >= len(row.Values) {
		return nil
	}
	return row.Values[i]
}

func (r *reader) str(row Row, col string) string {
	if v := r.value(row, col); v != nil {
		return *v
	}
	return ""
}

// intPtr parses an integer column. Values rendered as floats ("4.0") are
// accepted when integral. Nulls and absent columns yield nil.
func (r *reader) intPtr(row Row, col string) (*int, error) {
	v := r.value(row, col)
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if n, err := strconv.Atoi(s); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f >= math.MaxInt || f < math.MinInt {
		return nil, &ParseError{Table: r.table.Name, Line: row.Line, Column: col, Err: fmt.Errorf("%w: %q", errNotInteger, s)}
	}
	n := int(f)
	return &n, nil
}

func (r *reader) integer(row Row, col string) (int, error) {
	p, err := r.intPtr(row, col)
	if err != nil || p == nil {
		return 0, err
	}
	return *p, nil
}

func decodeRegions(t *Table) ([]domain.Region, error) {
	r, err := newReader(t, colRegionID, colRegionSequence, colRegionCategory)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Region, 0, len(t.Rows))
	for _, row := range t.Rows {
		code, err := r.integer(row, colRegionCategory)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Region{
			ID:           r.str(row, colRegionID),
			Sequence:     r.str(row, colRegionSequence),
			CategoryCode: code,
		})
	}
	return out, nil
}

func decodeLinks(t *Table) ([]domain.LocusRegionLink, error) {
	r, err := newReader(t, colLinkRegion, colLinkLocus, colLinkStart, colLinkLength)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LocusRegionLink, 0, len(t.Rows))
	for _, row := range t.Rows {
		start, err := r.integer(row, colLinkStart)
		if err != nil {
			return nil, err
		}
		length, err := r.integer(row, colLinkLength)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.LocusRegionLink{
			RegionID: r.str(row, colLinkRegion),
			LocusID:  r.str(row, colLinkLocus),
			Start:    start,
			Length:   length,
		})
	}
	return out, nil
}

// modelledLocusColumns are decoded into Locus fields; any other column lands
// in Locus.Attributes.
var modelledLocusColumns = map[string]bool{
	colLocusID:                 true,
	colLocusSequence:           true,
	colLocusStart:              true,
	colLocusLength:             true,
	domain.ColumnEvidenceLevel: true,
	colLocusOrientation:        true,
	colLocusPotential:          true,
}

func decodeLoci(t *Table) ([]domain.Locus, error) {
	r, err := newReader(t, colLocusID, colLocusSequence, colLocusOrientation, colLocusPotential)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Locus, 0, len(t.Rows))
	for _, row := range t.Rows {
		l := domain.Locus{ID: r.str(row, colLocusID), SequenceID: r.str(row, colLocusSequence)}
		if l.Start, err = r.integer(row, colLocusStart); err != nil {
			return nil, err
		}
		if l.Length, err = r.integer(row, colLocusLength); err != nil {
			return nil, err
		}
		if l.EvidenceLevel, err = r.intPtr(row, domain.ColumnEvidenceLevel); err != nil {
			return nil, err
		}
		o, err := r.integer(row, colLocusOrientation)
		if err != nil {
			return nil, err
		}
		po, err := r.integer(row, colLocusPotential)
		if err != nil {
			return nil, err
		}
		l.Orientation, l.PotentialOrientation = domain.Orientation(o), domain.Orientation(po)
		for i, col := range t.Columns {
			if modelledLocusColumns[col] || i >= len(row.Values) || row.Values[i] == nil {
				continue
			}
			if l.Attributes == nil {
				l.Attributes = make(map[string]string)
			}
			l.Attributes[col] = *row.Values[i]
		}
		out = append(out, l)
	}
	return out, nil
}

func decodeClassifications(t *Table) ([]domain.ClassificationRecord, error) {
	r, err := newReader(t, colClusterSequence, colClusterClass)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClassificationRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := domain.ClassificationRecord{SequenceID: r.str(row, colClusterSequence)}
		if v := r.value(row, colClusterClass); v != nil {
			rec.ClassLabel = domain.StringPtr(*v)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeStrains(t *Table) ([]domain.SequenceStrain, error) {
	r, err := newReader(t, colSequenceID, colSequenceStrain)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SequenceStrain, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, domain.SequenceStrain{
			SequenceID: r.str(row, colSequenceID),
			StrainID:   r.str(row, colSequenceStrain),
		})
	}
	return out, nil
}
