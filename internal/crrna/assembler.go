// Package crrna assembles mature CRISPR RNAs from subtyped arrays and builds
// the unique repeat catalogue.
package crrna

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"crisprcore/internal/array"
	"crisprcore/internal/subtype"
	"crisprcore/pkg/domain"
)

// MatureRNA is one distinct mature crRNA sequence and every subtype that
// produced it, sorted and deduplicated.
type MatureRNA struct {
	Sequence string   `json:"sequence"`
	Subtypes []string `json:"subtypes"`
}

// Label joins the subtypes with commas.
func (m MatureRNA) Label() string { return strings.Join(m.Subtypes, ",") }

// Unit is a single trimmed crRNA before deduplication.
type Unit struct {
	LocusID     string
	SpacerIndex int
	Sequence    string
	Subtype     string
}

// Assembler walks subtyped arrays and trims every fully flanked spacer.
type Assembler struct {
	registry *subtype.Registry
	workers  int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRegistry overrides the subtype registry.
func WithRegistry(r *subtype.Registry) Option {
	return func(a *Assembler) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithWorkers bounds the number of arrays processed concurrently. Values
// below one select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(a *Assembler) { a.workers = n }
}

// NewAssembler constructs an assembler backed by the default registry.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{registry: subtype.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers < 1 {
		a.workers = runtime.GOMAXPROCS(0)
	}
	return a
}

// Units trims every spacer of one array that has a repeat on both sides.
// Untyped arrays yield nothing. Storage order is genomic, so for reverse
// arrays the 5' flank sits after the spacer and the 3' flank before it.
func (a *Assembler) Units(arr array.Array) ([]Unit, error) {
	if !arr.HasSubtype() {
		return nil, nil
	}
	rule, ok := a.registry.Lookup(arr.Subtype)
	if !ok {
		return nil, fmt.Errorf("locus %s: subtype %s not registered", arr.LocusID, arr.Subtype)
	}
	var units []Unit
	for _, el := range arr.Elements {
		if !el.IsSpacer() {
			continue
		}
		five, three := el.Index-1, el.Index+1
		if arr.Orientation == domain.OrientationReverse {
			five, three = three, five
		}
		r5, ok5 := arr.At(five)
		r3, ok3 := arr.At(three)
		if !ok5 || !ok3 || !r5.IsRepeat() || !r3.IsRepeat() {
			continue
		}
		units = append(units, Unit{
			LocusID:     arr.LocusID,
			SpacerIndex: el.Index,
			Sequence:    rule(r5.Sequence, el.Sequence, r3.Sequence),
			Subtype:     arr.Subtype,
		})
	}
	return units, nil
}

// Assemble trims all arrays and deduplicates the result. Arrays are
// processed concurrently; output order depends only on array order.
func (a *Assembler) Assemble(ctx context.Context, arrays []array.Array) ([]MatureRNA, error) {
	perArray := make([][]Unit, len(arrays))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range arrays {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			units, err := a.Units(arrays[i])
			if err != nil {
				return err
			}
			perArray[i] = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []Unit
	for _, units := range perArray {
		all = append(all, units...)
	}
	return Dedup(all), nil
}

// Dedup groups units by exact sequence in first-occurrence order and merges
// their subtypes into a sorted set.
func Dedup(units []Unit) []MatureRNA {
	index := make(map[string]int)
	sets := make([]map[string]struct{}, 0)
	var out []MatureRNA
	for _, u := range units {
		i, ok := index[u.Sequence]
		if !ok {
			i = len(out)
			index[u.Sequence] = i
			out = append(out, MatureRNA{Sequence: u.Sequence})
			sets = append(sets, make(map[string]struct{}))
		}
		sets[i][u.Subtype] = struct{}{}
	}
	for i := range out {
		out[i].Subtypes = sortedKeys(sets[i])
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
