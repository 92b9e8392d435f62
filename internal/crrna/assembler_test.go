package crrna

import (
	"context"
	"reflect"
	"testing"

	"crisprcore/internal/array"
	"crisprcore/internal/subtype"
	"crisprcore/pkg/domain"
)

const (
	repeat18 = "GGATTTAGAGCTTTTTTT"
	spacer10 = "ACGTACGTAC"
)

func rep(seq string) array.Element { return array.Element{Category: domain.CategoryRepeat, Sequence: seq} }
func spc(seq string) array.Element { return array.Element{Category: domain.CategorySpacer, Sequence: seq} }

func mkArray(id, st string, o domain.Orientation, els ...array.Element) array.Array {
	for i := range els {
		els[i].Index = i
	}
	return array.Array{LocusID: id, Subtype: st, Orientation: o, Elements: els}
}

func TestAssembleEndToEndTypeIA(t *testing.T) {
	arr := mkArray("L1", subtype.TypeIA, domain.OrientationForward, rep(repeat18), spc(spacer10), rep(repeat18))
	got, err := NewAssembler().Assemble(context.Background(), []array.Array{arr})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	want := []MatureRNA{{Sequence: "CTTTTTTTACGTACGTACGGATTTAGAG", Subtypes: []string{subtype.TypeIA}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if got[0].Label() != subtype.TypeIA {
		t.Fatalf("label %q", got[0].Label())
	}
}

func TestUnitsSkipsTrailingSpacer(t *testing.T) {
	arr := mkArray("L1", subtype.TypeIA, domain.OrientationForward, rep("R1AAAAAAAA"), spc("S1"))
	units, err := NewAssembler().Units(arr)
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("spacer without 3' flank must be skipped, got %+v", units)
	}
}

func TestUnitsSkipsLeadingSpacerAndKeepsRest(t *testing.T) {
	arr := mkArray("L1", subtype.TypeIIA, domain.OrientationForward,
		spc("LEAD"), rep("AAAA"), spc("MID"), rep("CCCC"), spc("TAIL"))
	units, err := NewAssembler().Units(arr)
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	if len(units) != 1 || units[0].SpacerIndex != 2 || units[0].Sequence != "MIDCCCC" {
		t.Fatalf("expected only the middle spacer, got %+v", units)
	}
}

func TestUnitsRequiresRepeatNeighbours(t *testing.T) {
	arr := mkArray("L1", subtype.TypeIIA, domain.OrientationForward,
		rep("AAAA"), spc("S1"), spc("S2"), rep("CCCC"))
	units, _ := NewAssembler().Units(arr)
	if len(units) != 0 {
		t.Fatalf("adjacent spacers have no repeat flank, got %+v", units)
	}
}

func TestUnitsReverseSwapsFlanks(t *testing.T) {
	// Type II ignores the 5' repeat, so the 3' side shows which flank was used.
	fwd := mkArray("F", subtype.TypeIIA, domain.OrientationForward, rep("GGGG"), spc("S"), rep("TTTT"))
	rev := mkArray("R", subtype.TypeIIA, domain.OrientationReverse, rep("GGGG"), spc("S"), rep("TTTT"))
	a := NewAssembler()
	fu, _ := a.Units(fwd)
	ru, _ := a.Units(rev)
	if fu[0].Sequence != "STTTT" {
		t.Fatalf("forward: got %q", fu[0].Sequence)
	}
	if ru[0].Sequence != "SGGGG" {
		t.Fatalf("reverse: got %q", ru[0].Sequence)
	}

	tI := mkArray("R", subtype.TypeIA, domain.OrientationReverse, rep("AAAAAAAAAC"), spc("S"), rep("GGGGGGGGGT"))
	units, _ := a.Units(tI)
	if units[0].Sequence != "GGGGGGGT"+"S"+"AA" {
		t.Fatalf("reverse type I: got %q", units[0].Sequence)
	}
}

func TestUnitsUntypedArray(t *testing.T) {
	arr := mkArray("L1", "", domain.OrientationForward, rep(repeat18), spc(spacer10), rep(repeat18))
	units, err := NewAssembler().Units(arr)
	if err != nil || units != nil {
		t.Fatalf("untyped arrays yield nothing, got %+v %v", units, err)
	}
}

func TestUnitsUnknownSubtypeErrors(t *testing.T) {
	arr := mkArray("L1", "CAS-TypeIV-A", domain.OrientationForward, rep("A"), spc("C"), rep("G"))
	if _, err := NewAssembler().Units(arr); err == nil {
		t.Fatalf("expected error for a subtype missing from the registry")
	}
}

func TestAssembleDedupUnion(t *testing.T) {
	// Type II-A with short inputs emits spacer+repeat3; type II-B matches it.
	a := mkArray("1", subtype.TypeIIB, domain.OrientationForward, rep("X"), spc("ACGT"), rep("ACGT"))
	b := mkArray("2", subtype.TypeIIA, domain.OrientationForward, rep("Y"), spc("ACGT"), rep("ACGT"))
	c := mkArray("3", subtype.TypeIIA, domain.OrientationForward, rep("Z"), spc("ACGT"), rep("ACGT"), spc("ACGT"), rep("ACGT"))
	got, err := NewAssembler().Assemble(context.Background(), []array.Array{a, b, c})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single deduplicated record, got %+v", got)
	}
	if got[0].Sequence != "ACGTACGT" || got[0].Label() != "CAS-TypeII-A,CAS-TypeII-B" {
		t.Fatalf("unexpected record %+v", got[0])
	}
}

func TestDedupTypeIAAndIB(t *testing.T) {
	units := []Unit{
		{Sequence: "ACGTACGT", Subtype: subtype.TypeIB},
		{Sequence: "TTTT", Subtype: subtype.TypeIA},
		{Sequence: "ACGTACGT", Subtype: subtype.TypeIA},
		{Sequence: "ACGTACGT", Subtype: subtype.TypeIA},
	}
	got := Dedup(units)
	want := []MatureRNA{
		{Sequence: "ACGTACGT", Subtypes: []string{"CAS-TypeI-A", "CAS-TypeI-B"}},
		{Sequence: "TTTT", Subtypes: []string{"CAS-TypeI-A"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if got[0].Label() != "CAS-TypeI-A,CAS-TypeI-B" {
		t.Fatalf("label %q", got[0].Label())
	}
}

func TestAssembleWorkerCountDoesNotChangeOutput(t *testing.T) {
	var arrays []array.Array
	for i := 0; i < 40; i++ {
		sp := []string{"AAAA", "CCCC", "GGGG", "TTTT"}[i%4]
		st := []string{subtype.TypeIA, subtype.TypeIIA, subtype.TypeVA}[i%3]
		arrays = append(arrays, mkArray("L", st, domain.OrientationForward, rep(repeat18), spc(sp), rep(repeat18)))
	}
	one, err := NewAssembler(WithWorkers(1)).Assemble(context.Background(), arrays)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	many, err := NewAssembler(WithWorkers(8)).Assemble(context.Background(), arrays)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !reflect.DeepEqual(one, many) {
		t.Fatalf("worker count changed output:\n%+v\n%+v", one, many)
	}
}

func TestAssembleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	arr := mkArray("L1", subtype.TypeIA, domain.OrientationForward, rep(repeat18), spc(spacer10), rep(repeat18))
	if _, err := NewAssembler().Assemble(ctx, []array.Array{arr}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestWithRegistry(t *testing.T) {
	r := subtype.NewRegistry()
	if err := r.Register("custom", func(r5, s, r3 string) string { return r5 + "|" + s + "|" + r3 }); err != nil {
		t.Fatalf("register: %v", err)
	}
	arr := mkArray("L1", "custom", domain.OrientationForward, rep("A"), spc("C"), rep("G"))
	units, err := NewAssembler(WithRegistry(r)).Units(arr)
	if err != nil || len(units) != 1 || units[0].Sequence != "A|C|G" {
		t.Fatalf("custom registry not used: %+v %v", units, err)
	}
}
