// Package fasta renders mature crRNA and repeat records as FASTA.
package fasta

import (
	"fmt"
	"io"

	"crisprcore/internal/crrna"
)

// HeaderPrefix starts every record identifier.
const HeaderPrefix = "sequence"

// Record is one labelled sequence.
type Record struct {
	Sequence string
	Label    string
}

// Write emits records as `>sequence_N|subtype:LABEL` headers followed by the
// sequence on one line. N counts from start in slice order.
func Write(w io.Writer, start int, records []Record) error {
	for i, r := range records {
		if _, err := fmt.Fprintf(w, ">%s_%d|subtype:%s\n%s\n", HeaderPrefix, start+i, r.Label, r.Sequence); err != nil {
			return err
		}
	}
	return nil
}

// WriteMatureRNAs writes the deduplicated crRNAs numbered from sequence_0.
func WriteMatureRNAs(w io.Writer, list []crrna.MatureRNA) error {
	records := make([]Record, len(list))
	for i, m := range list {
		records[i] = Record{Sequence: m.Sequence, Label: m.Label()}
	}
	return Write(w, 0, records)
}

// WriteRepeats writes the unique repeat catalogue numbered from sequence_1.
func WriteRepeats(w io.Writer, list []crrna.RepeatRecord) error {
	records := make([]Record, len(list))
	for i, r := range list {
		records[i] = Record{Sequence: r.Sequence, Label: r.Label()}
	}
	return Write(w, 1, records)
}
