package dataset

import (
	"fmt"

	"crisprcore/internal/nucleotide"
	"crisprcore/pkg/domain"
)

// RequiredEvidenceLevel is the locus confidence tier kept by the evidence filter.
const RequiredEvidenceLevel = 4

// bookkeepingAttributes are locus columns with no use past the locus filters.
var bookkeepingAttributes = []string{
	"crisprlocus_blastscore",
	"crisprlocus_evidencelevelreeval",
	"crisprlocus_spacerconservation",
	"crisprlocus_drconservation",
	"crisprlocus_trusted",
}

// Stage names reported in StageCount.
const (
	StageJoined      = "joined"
	StageEvidence    = "evidence_level"
	StageNucleotides = "unambiguous_nucleotides"
	StageOrientation = "consistent_orientation"
	StageClassified  = "classified_sequences"
	StageUnified     = "unified"
)

// StageCount is the number of rows surviving a pipeline stage.
type StageCount struct {
	Stage string `json:"stage"`
	Rows  int    `json:"rows"`
}

// LocusDataset is the filtered, strand-corrected element set before the
// classification lookup. Elements carry no class label yet.
type LocusDataset struct {
	Elements    []domain.UnifiedElement
	Diagnostics []domain.Diagnostic
	Stages      []StageCount
}

// BuildLocusDataset joins regions, links and loci, then applies the evidence,
// nucleotide and orientation filters, corrects reverse strands and drops the
// bookkeeping attributes. Each step assumes the invariants of the previous
// one, so the order is fixed.
func BuildLocusDataset(t domain.Tables) LocusDataset {
	var ds LocusDataset

	rows := joinLoci(t)
	ds.Stages = append(ds.Stages, StageCount{StageJoined, len(rows)})

	if t.Schema.HasColumn(domain.TableLocus, domain.ColumnEvidenceLevel) {
		rows = filterRows(rows, func(r joinedRow) bool {
			return r.locus.EvidenceLevel != nil && *r.locus.EvidenceLevel == RequiredEvidenceLevel
		})
	} else {
		ds.Diagnostics = append(ds.Diagnostics, domain.Diagnostic{
			Kind:    domain.DiagnosticSchemaMismatch,
			Table:   domain.TableLocus,
			Column:  domain.ColumnEvidenceLevel,
			Message: fmt.Sprintf("column %q does not exist, evidence level filter skipped", domain.ColumnEvidenceLevel),
		})
	}
	ds.Stages = append(ds.Stages, StageCount{StageEvidence, len(rows)})

	rows = filterRows(rows, func(r joinedRow) bool { return nucleotide.IsUnambiguous(r.region.Sequence) })
	ds.Stages = append(ds.Stages, StageCount{StageNucleotides, len(rows)})

	rows = filterRows(rows, func(r joinedRow) bool { return consistentOrientation(r.locus) })
	ds.Stages = append(ds.Stages, StageCount{StageOrientation, len(rows)})

	ds.Elements = make([]domain.UnifiedElement, 0, len(rows))
	for _, r := range rows {
		seq := r.region.Sequence
		if r.locus.Orientation == domain.OrientationReverse {
			seq = nucleotide.ReverseComplement(seq)
		}
		ds.Elements = append(ds.Elements, domain.UnifiedElement{
			LocusID:              r.locus.ID,
			RegionID:             r.region.ID,
			RegionStart:          r.link.Start,
			RegionEnd:            r.link.End(),
			RegionSequence:       seq,
			RegionCategory:       r.category,
			Orientation:          r.locus.Orientation,
			PotentialOrientation: r.locus.PotentialOrientation,
			SequenceID:           r.locus.SequenceID,
			Attributes:           dropBookkeeping(r.locus.Attributes),
		})
	}
	return ds
}

type joinedRow struct {
	region   domain.Region
	category domain.Category
	link     domain.LocusRegionLink
	locus    domain.Locus
}

// joinLoci inner-joins link->region and locus->link. Output follows locus
// table order, then link table order within each locus. Regions outside the
// repeat and spacer categories never join.
func joinLoci(t domain.Tables) []joinedRow {
	regions := make(map[string]domain.Region, len(t.Regions))
	for _, r := range t.Regions {
		if _, ok := r.Category(); ok {
			regions[r.ID] = r
		}
	}
	linksByLocus := make(map[string][]domain.LocusRegionLink)
	for _, l := range t.LocusRegions {
		if _, ok := regions[l.RegionID]; !ok {
			continue
		}
		linksByLocus[l.LocusID] = append(linksByLocus[l.LocusID], l)
	}
	var rows []joinedRow
	for _, locus := range t.Loci {
		for _, link := range linksByLocus[locus.ID] {
			region := regions[link.RegionID]
			category, _ := region.Category()
			rows = append(rows, joinedRow{region: region, category: category, link: link, locus: locus})
		}
	}
	return rows
}

func filterRows(rows []joinedRow, keep func(joinedRow) bool) []joinedRow {
	out := rows[:0:0]
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func consistentOrientation(l domain.Locus) bool {
	switch {
	case l.Orientation == domain.OrientationForward && l.PotentialOrientation == domain.OrientationForward:
		return true
	case l.Orientation == domain.OrientationReverse && l.PotentialOrientation == domain.OrientationReverse:
		return true
	}
	return false
}

func dropBookkeeping(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	for _, k := range bookkeepingAttributes {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
