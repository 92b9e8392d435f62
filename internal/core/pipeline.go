package core

import (
	"context"
	"fmt"

	"crisprcore/internal/array"
	"crisprcore/internal/crrna"
	"crisprcore/internal/dataset"
	"crisprcore/internal/subtype"
	"crisprcore/pkg/domain"
)

// Stage names reported after the dataset stages.
const (
	StageArrays      = "arrays"
	StageTypedArrays = "typed_arrays"
	StageMatureRNAs  = "mature_rnas"
	StageRepeats     = "unique_repeats"
)

// PipelineResult carries every intermediate and final view of one pipeline run.
type PipelineResult struct {
	Dataset       dataset.Dataset
	Arrays        []array.Array
	MatureRNAs    []crrna.MatureRNA
	Repeats       []crrna.RepeatRecord
	UniqueRepeats int
	UniqueSpacers int
}

// TypedArrays counts arrays that received a subtype.
func (r PipelineResult) TypedArrays() int {
	n := 0
	for _, a := range r.Arrays {
		if a.HasSubtype() {
			n++
		}
	}
	return n
}

// Stages returns the dataset stage counts followed by the array and
// assembly counts.
func (r PipelineResult) Stages() []dataset.StageCount {
	stages := append([]dataset.StageCount(nil), r.Dataset.Stages...)
	return append(stages,
		dataset.StageCount{Stage: StageArrays, Rows: len(r.Arrays)},
		dataset.StageCount{Stage: StageTypedArrays, Rows: r.TypedArrays()},
		dataset.StageCount{Stage: StageMatureRNAs, Rows: len(r.MatureRNAs)},
		dataset.StageCount{Stage: StageRepeats, Rows: len(r.Repeats)},
	)
}

// RunPipeline builds the unified dataset, groups it into arrays, assembles
// the mature crRNAs and collects the repeat catalogue. A nil assembler or
// registry selects the defaults.
func RunPipeline(ctx context.Context, tables domain.Tables, assembler *crrna.Assembler, registry *subtype.Registry) (PipelineResult, error) {
	if err := ctx.Err(); err != nil {
		return PipelineResult{}, err
	}
	if registry == nil {
		registry = subtype.Default()
	}
	if assembler == nil {
		assembler = crrna.NewAssembler(crrna.WithRegistry(registry))
	}

	ds := dataset.Build(tables)
	arrays := array.Build(ds.Elements, registry.Known)
	rnas, err := assembler.Assemble(ctx, arrays)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("assemble mature rnas: %w", err)
	}
	repeats, spacers := crrna.CountUnique(ds.Elements)
	return PipelineResult{
		Dataset:       ds,
		Arrays:        arrays,
		MatureRNAs:    rnas,
		Repeats:       crrna.Repeats(ds.Elements),
		UniqueRepeats: repeats,
		UniqueSpacers: spacers,
	}, nil
}
