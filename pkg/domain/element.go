package domain

// UnifiedElement is one region placed in one locus after all joins, filters
// and orientation correction. RegionSequence is always on the biological
// sense strand and holds only A, C, G and T.
type UnifiedElement struct {
	LocusID              string            `json:"locus_id"`
	RegionID             string            `json:"region_id"`
	RegionStart          int               `json:"region_start"`
	RegionEnd            int               `json:"region_end"`
	RegionSequence       string            `json:"region_sequence"`
	RegionCategory       Category          `json:"region_category"`
	Orientation          Orientation       `json:"orientation"`
	PotentialOrientation Orientation       `json:"potential_orientation"`
	SequenceID           string            `json:"sequence_id"`
	ClassLabel           *string           `json:"class_label,omitempty"`
	Attributes           map[string]string `json:"attributes,omitempty"`
}

// DiagnosticKind names a recoverable pipeline condition.
type DiagnosticKind string

const (
	// DiagnosticSchemaMismatch marks a filter skipped because its column is absent.
	DiagnosticSchemaMismatch DiagnosticKind = "schema_mismatch"
)

// Diagnostic is a non-fatal note raised while building a dataset.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Table   TableName      `json:"table,omitempty"`
	Column  string         `json:"column,omitempty"`
	Message string         `json:"message"`
}
