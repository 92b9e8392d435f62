package array

import (
	"testing"

	"crisprcore/internal/subtype"
	"crisprcore/pkg/domain"
)

func el(locus string, start int, cat domain.Category, seq string, label *string) domain.UnifiedElement {
	return domain.UnifiedElement{
		LocusID:        locus,
		RegionID:       locus + "-" + seq,
		RegionStart:    start,
		RegionSequence: seq,
		RegionCategory: cat,
		Orientation:    domain.OrientationForward,
		ClassLabel:     label,
	}
}

func TestBuildOrdersByStartAndLocus(t *testing.T) {
	a := domain.StringPtr(subtype.TypeIA)
	rows := []domain.UnifiedElement{
		el("10", 30, domain.CategoryRepeat, "R3", a),
		el("2", 5, domain.CategoryRepeat, "X", nil),
		el("10", 10, domain.CategoryRepeat, "R1", a),
		el("10", 20, domain.CategorySpacer, "S1", a),
	}
	arrays := Build(rows, subtype.Default().Known)
	if len(arrays) != 2 {
		t.Fatalf("expected 2 arrays, got %d", len(arrays))
	}
	if arrays[0].LocusID != "2" || arrays[1].LocusID != "10" {
		t.Fatalf("expected numeric locus order, got %s,%s", arrays[0].LocusID, arrays[1].LocusID)
	}
	got := arrays[1]
	for i, want := range []string{"R1", "S1", "R3"} {
		if got.Elements[i].Sequence != want || got.Elements[i].Index != i {
			t.Fatalf("element %d = %+v, want %s", i, got.Elements[i], want)
		}
	}
	if got.Subtype != subtype.TypeIA || !got.HasSubtype() {
		t.Fatalf("expected subtype %s, got %q", subtype.TypeIA, got.Subtype)
	}
	if arrays[0].HasSubtype() {
		t.Fatalf("unlabelled array must be untyped")
	}
	if len(got.Repeats()) != 2 || len(got.Spacers()) != 1 {
		t.Fatalf("unexpected repeat/spacer split")
	}
}

func TestBuildSubtypeDetermination(t *testing.T) {
	cases := []struct {
		name   string
		labels []*string
		want   string
	}{
		{"all agree", []*string{domain.StringPtr(subtype.TypeIIA), domain.StringPtr(subtype.TypeIIA)}, subtype.TypeIIA},
		{"nulls ignored", []*string{nil, domain.StringPtr(subtype.TypeVA), nil}, subtype.TypeVA},
		{"conflicting", []*string{domain.StringPtr(subtype.TypeIA), domain.StringPtr(subtype.TypeIB)}, ""},
		{"unregistered", []*string{domain.StringPtr("CAS-TypeIV-A")}, ""},
		{"all null", []*string{nil, nil}, ""},
	}
	for _, tc := range cases {
		var rows []domain.UnifiedElement
		for i, l := range tc.labels {
			rows = append(rows, el("L", i, domain.CategoryRepeat, "ACGT", l))
		}
		arrays := Build(rows, subtype.Default().Known)
		if arrays[0].Subtype != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, arrays[0].Subtype, tc.want)
		}
	}
}

func TestBuildOrientation(t *testing.T) {
	row := el("L", 0, domain.CategoryRepeat, "ACGT", nil)
	row.Orientation = domain.OrientationReverse
	arrays := Build([]domain.UnifiedElement{row}, nil)
	if arrays[0].Orientation != domain.OrientationReverse || arrays[0].Orientation.String() != "Reverse" {
		t.Fatalf("unexpected orientation %v", arrays[0].Orientation)
	}
}

func TestBuildStableForEqualStarts(t *testing.T) {
	rows := []domain.UnifiedElement{
		el("L", 5, domain.CategoryRepeat, "first", nil),
		el("L", 5, domain.CategorySpacer, "second", nil),
	}
	arrays := Build(rows, nil)
	if arrays[0].Elements[0].Sequence != "first" {
		t.Fatalf("equal starts must keep input order")
	}
}

func TestArrayAt(t *testing.T) {
	arrays := Build([]domain.UnifiedElement{el("L", 0, domain.CategoryRepeat, "ACGT", nil)}, nil)
	if _, ok := arrays[0].At(-1); ok {
		t.Fatalf("negative index must miss")
	}
	if _, ok := arrays[0].At(1); ok {
		t.Fatalf("index past end must miss")
	}
	if e, ok := arrays[0].At(0); !ok || !e.IsRepeat() || e.IsSpacer() {
		t.Fatalf("expected repeat at 0")
	}
}

func TestBuildEmpty(t *testing.T) {
	if arrays := Build(nil, nil); len(arrays) != 0 {
		t.Fatalf("expected no arrays")
	}
}
