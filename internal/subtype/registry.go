package subtype

import (
	"fmt"
	"sort"
	"strings"
)

// Known subtype labels.
const (
	TypeIA   = "CAS-TypeI-A"
	TypeIB   = "CAS-TypeI-B"
	TypeIC   = "CAS-TypeI-C"
	TypeID   = "CAS-TypeI-D"
	TypeIE   = "CAS-TypeI-E"
	TypeIF   = "CAS-TypeI-F"
	TypeIG   = "CAS-TypeI-G"
	TypeIIA  = "CAS-TypeII-A"
	TypeIIB  = "CAS-TypeII-B"
	TypeIIC  = "CAS-TypeII-C"
	TypeIIIA = "CAS-TypeIII-A"
	TypeIIIB = "CAS-TypeIII-B"
	TypeIIID = "CAS-TypeIII-D"
	TypeVA   = "CAS-TypeV-A"
	TypeVF4  = "CAS-TypeV-F4"
)

// Registry holds subtype label to trimming rule mappings.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule under label.
func (r *Registry) Register(label string, rule Rule) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("subtype label required")
	}
	if rule == nil {
		return fmt.Errorf("subtype %s: rule cannot be nil", label)
	}
	if _, exists := r.rules[label]; exists {
		return fmt.Errorf("subtype %s already registered", label)
	}
	r.rules[label] = rule
	return nil
}

// Lookup returns the rule registered for label.
func (r *Registry) Lookup(label string) (Rule, bool) {
	rule, ok := r.rules[label]
	return rule, ok
}

// Known reports whether label has a registered rule.
func (r *Registry) Known(label string) bool {
	_, ok := r.rules[label]
	return ok
}

// Labels returns the registered labels in sorted order.
func (r *Registry) Labels() []string {
	out := make([]string, 0, len(r.rules))
	for label := range r.rules {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Trim applies the rule registered for label.
func (r *Registry) Trim(label, repeat5, spacer, repeat3 string) (string, error) {
	rule, ok := r.rules[label]
	if !ok {
		return "", fmt.Errorf("subtype %s not registered", label)
	}
	return rule(repeat5, spacer, repeat3), nil
}

var defaultRegistry = buildDefault()

// Default returns the fixed registry of the fifteen processed subtypes.
// The returned registry is shared and must not be mutated.
func Default() *Registry { return defaultRegistry }

func buildDefault() *Registry {
	typeI := FlankTrim(8)
	typeIWide := FlankTrim(11)
	typeII := SpacerThenRepeat(20, 19)

	r := NewRegistry()
	for label, rule := range map[string]Rule{
		TypeIA:   typeI,
		TypeIB:   typeI,
		TypeIC:   typeIWide,
		TypeID:   typeI,
		TypeIE:   typeI,
		TypeIF:   typeI,
		TypeIG:   typeI,
		TypeIIA:  typeII,
		TypeIIB:  typeII,
		TypeIIC:  typeII,
		TypeIIIA: typeI,
		TypeIIIB: typeI,
		TypeIIID: typeIWide,
		TypeVA:   RepeatThenSpacer(19, 20),
		TypeVF4:  RepeatThenSpacer(17, 20),
	} {
		if err := r.Register(label, rule); err != nil {
			panic(fmt.Errorf("subtype registry %s: %w", label, err))
		}
	}
	return r
}
