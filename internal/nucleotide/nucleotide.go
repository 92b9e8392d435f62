// Package nucleotide holds the base-level sequence checks and the strand
// correction applied to reverse-oriented loci.
package nucleotide

import (
	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
)

// IsUnambiguous reports whether s consists only of A, C, G and T. The empty
// sequence is unambiguous.
func IsUnambiguous(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}

// ReverseComplement reverses s and swaps A<->T and C<->G.
func ReverseComplement(s string) string {
	if s == "" {
		return s
	}
	sq := linear.NewSeq("", alphabet.BytesToLetters([]byte(s)), alphabet.DNA)
	sq.RevComp()
	return string(alphabet.LettersToBytes(sq.Seq))
}
