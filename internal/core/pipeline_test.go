package core

import (
	"context"
	"testing"

	"crisprcore/internal/subtype"
	"crisprcore/pkg/domain"
)

func pipelineTables() domain.Tables {
	repeat := "GGATTTAGAGCTTTTTTT"
	return domain.Tables{
		Regions: []domain.Region{
			{ID: "1", Sequence: repeat, CategoryCode: 1},
			{ID: "2", Sequence: "ACGTACGTAC", CategoryCode: 3},
			{ID: "3", Sequence: "TTTTGGGGCC", CategoryCode: 3},
		},
		LocusRegions: []domain.LocusRegionLink{
			{RegionID: "1", LocusID: "10", Start: 0, Length: 18},
			{RegionID: "2", LocusID: "10", Start: 18, Length: 10},
			{RegionID: "1", LocusID: "10", Start: 28, Length: 18},
			{RegionID: "1", LocusID: "20", Start: 0, Length: 18},
			{RegionID: "3", LocusID: "20", Start: 18, Length: 10},
			{RegionID: "1", LocusID: "20", Start: 28, Length: 18},
		},
		Loci: []domain.Locus{
			{ID: "10", SequenceID: "500", Length: 46, EvidenceLevel: domain.IntPtr(4), Orientation: 1, PotentialOrientation: 1},
			{ID: "20", SequenceID: "600", Length: 46, EvidenceLevel: domain.IntPtr(4), Orientation: 1, PotentialOrientation: 1},
		},
		Classifications: []domain.ClassificationRecord{
			{SequenceID: "500", ClassLabel: domain.StringPtr(subtype.TypeIA)},
		},
		SequenceStrains: []domain.SequenceStrain{{SequenceID: "500", StrainID: "7"}},
	}
}

func TestRunPipeline(t *testing.T) {
	res, err := RunPipeline(context.Background(), pipelineTables(), nil, nil)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if len(res.Arrays) != 2 || res.TypedArrays() != 1 {
		t.Fatalf("expected two arrays, one typed, got %+v", res.Arrays)
	}
	if len(res.MatureRNAs) != 1 || res.MatureRNAs[0].Sequence != "CTTTTTTTACGTACGTACGGATTTAGAG" {
		t.Fatalf("unexpected mature rnas %+v", res.MatureRNAs)
	}
	if res.UniqueRepeats != 1 || res.UniqueSpacers != 2 {
		t.Fatalf("unexpected unique counts %d/%d", res.UniqueRepeats, res.UniqueSpacers)
	}
	if len(res.Repeats) != 1 || res.Repeats[0].Label() != subtype.TypeIA {
		t.Fatalf("unexpected repeats %+v", res.Repeats)
	}
	stages := res.Stages()
	last := stages[len(stages)-4:]
	want := []int{2, 1, 1, 1}
	for i, st := range last {
		if st.Rows != want[i] {
			t.Fatalf("stage %s: got %d want %d", st.Stage, st.Rows, want[i])
		}
	}
}

func TestRunPipelineCustomRegistry(t *testing.T) {
	reg := subtype.NewRegistry()
	if err := reg.Register(subtype.TypeIA, subtype.FlankTrim(0)); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := RunPipeline(context.Background(), pipelineTables(), nil, reg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if len(res.MatureRNAs) != 1 || res.MatureRNAs[0].Sequence != "ACGTACGTACGGATTTAGAGCTTTTTTT" {
		t.Fatalf("unexpected mature rnas %+v", res.MatureRNAs)
	}
}

func TestRunPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunPipeline(ctx, pipelineTables(), nil, nil); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
