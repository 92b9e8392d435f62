package dump

import (
	"errors"
	"strings"
	"testing"

	"crisprcore/pkg/domain"
)

const sampleDump = `--
-- PostgreSQL database dump
--

SET statement_timeout = 0;

COPY public.region (id, sequence, category) FROM stdin;
1	GGATTTAGAGCTTTTTTT	1
2	ACGTACGTAC	3
3	NNNN	2
\.

COPY public.crisprlocus_region (region, crisprlocus, start, length) FROM stdin;
1	10	100	18
2	10	118	10
1	10	128	18
\.

COPY public.crisprlocus (id, sequence, start, length, evidencelevel, orientation, potentialorientation, blastscore, trusted) FROM stdin;
10	500	100	46	4	1	1	0.93	\N
11	501	0	10	\N	2	2	\N	t
\.

COPY public.clustercas (sequence, class) FROM stdin;
500	CAS-TypeI-A
501	\N
\.

COPY public.sequence (id, strain) FROM stdin;
500	7
501	8

COPY public.other (id) FROM stdin;
1
\.
`

func TestParseBlocks(t *testing.T) {
	d, err := Parse(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(d.Tables) != 6 {
		t.Fatalf("expected 6 tables, got %d", len(d.Tables))
	}
	region, ok := d.Table("region")
	if !ok {
		t.Fatalf("region table missing")
	}
	if got := strings.Join(region.Columns, ","); got != "region_id,region_sequence,region_category" {
		t.Fatalf("unexpected columns %s", got)
	}
	if len(region.Rows) != 3 || *region.Rows[0].Values[1] != "GGATTTAGAGCTTTTTTT" {
		t.Fatalf("unexpected rows %+v", region.Rows)
	}
	if region.Rows[0].Line != 8 {
		t.Fatalf("expected line 8, got %d", region.Rows[0].Line)
	}
	seq, _ := d.Table("sequence")
	if len(seq.Rows) != 2 {
		t.Fatalf("blank line must end the block, got %d rows", len(seq.Rows))
	}
	loci, _ := d.Table("crisprlocus")
	if loci.Rows[1].Values[4] != nil {
		t.Fatalf("expected null evidence level")
	}
	if loci.Index("crisprlocus_trusted") != 8 || loci.Index("nope") != -1 {
		t.Fatalf("unexpected column index")
	}
}

func TestParseRecords(t *testing.T) {
	d, err := Parse(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cls, _ := d.Table("clustercas")
	recs := cls.Records()
	if len(recs) != 2 || recs[0]["clustercas_class"] != "CAS-TypeI-A" || recs[1]["clustercas_class"] != nil {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestParseUnescapes(t *testing.T) {
	in := "COPY public.t (a, b) FROM stdin;\nx\\ty\tback\\\\slash\n\\.\n"
	d, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tbl, _ := d.Table("t")
	if *tbl.Rows[0].Values[0] != "x\ty" || *tbl.Rows[0].Values[1] != `back\slash` {
		t.Fatalf("unexpected values %q %q", *tbl.Rows[0].Values[0], *tbl.Rows[0].Values[1])
	}
}

func TestParseTooManyFields(t *testing.T) {
	in := "COPY public.t (a) FROM stdin;\n1\t2\n\\.\n"
	_, err := Parse(strings.NewReader(in))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Table != "t" || perr.Line != 2 {
		t.Fatalf("unexpected error position %+v", perr)
	}
}

func TestDecode(t *testing.T) {
	d, err := Parse(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tables, err := Decode(d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tables.Regions) != 3 || tables.Regions[1].CategoryCode != 3 {
		t.Fatalf("unexpected regions %+v", tables.Regions)
	}
	if len(tables.LocusRegions) != 3 || tables.LocusRegions[2].End() != 146 {
		t.Fatalf("unexpected links %+v", tables.LocusRegions)
	}
	l := tables.Loci[0]
	if l.ID != "10" || l.SequenceID != "500" || l.EvidenceLevel == nil || *l.EvidenceLevel != 4 {
		t.Fatalf("unexpected locus %+v", l)
	}
	if l.Orientation != domain.OrientationForward || l.PotentialOrientation != domain.OrientationForward {
		t.Fatalf("unexpected orientation %+v", l)
	}
	if l.Attributes["crisprlocus_blastscore"] != "0.93" {
		t.Fatalf("expected extra columns in attributes, got %+v", l.Attributes)
	}
	if _, ok := l.Attributes["crisprlocus_trusted"]; ok {
		t.Fatalf("null attributes must be omitted")
	}
	if tables.Loci[1].EvidenceLevel != nil || tables.Loci[1].Orientation != domain.OrientationReverse {
		t.Fatalf("unexpected second locus %+v", tables.Loci[1])
	}
	if tables.Classifications[1].ClassLabel != nil || *tables.Classifications[0].ClassLabel != "CAS-TypeI-A" {
		t.Fatalf("unexpected classifications %+v", tables.Classifications)
	}
	if len(tables.SequenceStrains) != 2 || tables.SequenceStrains[1].StrainID != "8" {
		t.Fatalf("unexpected strains %+v", tables.SequenceStrains)
	}
	if !tables.Schema.HasColumn(domain.TableLocus, domain.ColumnEvidenceLevel) {
		t.Fatalf("schema must record the evidence column")
	}
	if _, ok := tables.Schema["other"]; ok {
		t.Fatalf("unknown tables must not enter the schema")
	}
}

func TestDecodeFloatIntegers(t *testing.T) {
	in := "COPY public.region (id, sequence, category) FROM stdin;\n1\tACGT\t1.0\n\\.\n"
	d, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tables, err := Decode(d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tables.Regions[0].CategoryCode != 1 {
		t.Fatalf("expected category 1, got %d", tables.Regions[0].CategoryCode)
	}
}

func TestDecodeBadNumber(t *testing.T) {
	in := "COPY public.crisprlocus_region (region, crisprlocus, start, length) FROM stdin;\n1\t2\tabc\t4\n\\.\n"
	d, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = Decode(d)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Column != "crisprlocus_region_start" || perr.Line != 2 || !errors.Is(err, errNotInteger) {
		t.Fatalf("unexpected error %+v", perr)
	}
}

func TestDecodeOutOfRangeFloat(t *testing.T) {
	for _, v := range []string{"1e300", "-1e300", "9.3e18"} {
		in := "COPY public.region (id, sequence, category) FROM stdin;\n1\tACGT\t" + v + "\n\\.\n"
		d, err := Parse(strings.NewReader(in))
		if err != nil {
			t.Fatalf("parse %s: %v", v, err)
		}
		_, err = Decode(d)
		var perr *ParseError
		if !errors.As(err, &perr) || !errors.Is(err, errNotInteger) {
			t.Fatalf("%s: expected integer ParseError, got %v", v, err)
		}
		if perr.Column != "region_category" || perr.Line != 2 {
			t.Fatalf("%s: unexpected error %+v", v, perr)
		}
	}
}

func TestDecodeMissingEvidenceColumn(t *testing.T) {
	in := "COPY public.crisprlocus (id, sequence, orientation, potentialorientation) FROM stdin;\n1\t2\t1\t1\n\\.\n"
	d, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tables, err := Decode(d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tables.Schema.HasColumn(domain.TableLocus, domain.ColumnEvidenceLevel) {
		t.Fatalf("evidence column should be absent from the schema")
	}
	if tables.Loci[0].EvidenceLevel != nil {
		t.Fatalf("expected nil evidence level")
	}
}

func TestDecodeMissingRequiredColumn(t *testing.T) {
	in := "COPY public.sequence (id) FROM stdin;\n1\n\\.\n"
	d, _ := Parse(strings.NewReader(in))
	if _, err := Decode(d); err == nil {
		t.Fatalf("expected error for missing strain column")
	}
}
