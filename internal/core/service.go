// Package core wires table loading, the crRNA pipeline and artifact storage
// into a service with pluggable observability.
package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"crisprcore/internal/blob"
	"crisprcore/internal/crrna"
	"crisprcore/internal/dataset"
	"crisprcore/internal/dump"
	"crisprcore/internal/fasta"
	"crisprcore/internal/subtype"
	"crisprcore/pkg/domain"
)

// Operation names reported to metrics and tracers.
const (
	OpImport       = "import"
	OpExportTables = "export_tables"
	OpRun          = "run"
	OpStats        = "stats"
	OpArtifacts    = "artifacts"
	OpDeleteRun    = "delete_run"
)

// Service loads table snapshots, runs the pipeline and stores its artifacts.
type Service struct {
	store domain.TableStore
	blobs blob.Store
	opts  serviceOptions
}

type serviceOptions struct {
	clock    Clock
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	registry *subtype.Registry
	workers  int
	newID    func() string
}

// ServiceOption customises service behaviour.
type ServiceOption func(*serviceOptions)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		registry: subtype.Default(),
		newID:    uuid.NewString,
	}
}

// WithClock overrides the service clock.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger. *slog.Logger satisfies Logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRegistry overrides the subtype registry used for array typing and trimming.
func WithRegistry(registry *subtype.Registry) ServiceOption {
	return func(o *serviceOptions) {
		if registry != nil {
			o.registry = registry
		}
	}
}

// WithWorkers bounds concurrent array assembly. Zero selects GOMAXPROCS.
func WithWorkers(n int) ServiceOption {
	return func(o *serviceOptions) { o.workers = n }
}

// WithIDGenerator overrides run and export id generation.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(o *serviceOptions) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// NewService constructs a service over a table store and an artifact store.
// A nil artifact store selects an in-memory one.
func NewService(store domain.TableStore, blobs blob.Store, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if blobs == nil {
		blobs = blob.NewMemory()
	}
	return &Service{store: store, blobs: blobs, opts: cfg}
}

// Store returns the underlying table store.
func (s *Service) Store() domain.TableStore { return s.store }

// Blobs returns the underlying artifact store.
func (s *Service) Blobs() blob.Store { return s.blobs }

func (s *Service) instrument(ctx context.Context, op string, fn func(context.Context) error) error {
	start := s.opts.clock.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, s.opts.clock.Now().Sub(start))
	if err != nil {
		s.opts.logger.Error("operation failed", "operation", op, "error", err)
	}
	return err
}

// ImportOptions controls Import.
type ImportOptions struct {
	// ExportJSON also writes every parsed table as JSON to the artifact store.
	ExportJSON bool
}

// ImportResult reports what an import stored.
type ImportResult struct {
	Rows       map[domain.TableName]int `json:"rows"`
	ExportID   string                   `json:"export_id,omitempty"`
	ExportKeys []string                 `json:"export_keys,omitempty"`
}

// Import parses a SQL dump, decodes the known tables and replaces the stored
// snapshot.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	err := s.instrument(ctx, OpImport, func(ctx context.Context) error {
		d, err := dump.Parse(r)
		if err != nil {
			return err
		}
		tables, err := dump.Decode(d)
		if err != nil {
			return err
		}
		if err := s.store.SaveTables(ctx, tables); err != nil {
			return fmt.Errorf("save tables: %w", err)
		}
		res.Rows = map[domain.TableName]int{
			domain.TableRegion:      len(tables.Regions),
			domain.TableLocusRegion: len(tables.LocusRegions),
			domain.TableLocus:       len(tables.Loci),
			domain.TableClusterCas:  len(tables.Classifications),
			domain.TableSequence:    len(tables.SequenceStrains),
		}
		s.opts.logger.Info("tables imported", "regions", len(tables.Regions), "loci", len(tables.Loci))
		if !opts.ExportJSON {
			return nil
		}
		id, keys, err := s.ExportTables(ctx, d)
		if err != nil {
			return err
		}
		res.ExportID, res.ExportKeys = id, keys
		return nil
	})
	return res, err
}

// ExportTables writes every table of a parsed dump as a JSON array of
// records under a fresh export id.
func (s *Service) ExportTables(ctx context.Context, d *dump.Dump) (string, []string, error) {
	id := s.opts.newID()
	var keys []string
	err := s.instrument(ctx, OpExportTables, func(ctx context.Context) error {
		for _, t := range d.Tables {
			payload, err := json.Marshal(t.Records())
			if err != nil {
				return fmt.Errorf("encode table %s: %w", t.Name, err)
			}
			key := blob.TableKey(id, t.Name)
			if _, err := blob.PutBytes(ctx, s.blobs, key, payload, blob.ContentTypeJSON, map[string]string{"export_id": id}); err != nil {
				return fmt.Errorf("store table %s: %w", t.Name, err)
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return id, keys, nil
}

// RunSummary describes one pipeline run and the artifacts it stored.
type RunSummary struct {
	RunID         string               `json:"run_id"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	Stages        []dataset.StageCount `json:"stages"`
	Diagnostics   []domain.Diagnostic  `json:"diagnostics,omitempty"`
	Arrays        int                  `json:"arrays"`
	TypedArrays   int                  `json:"typed_arrays"`
	MatureRNAs    int                  `json:"mature_rnas"`
	Repeats       int                  `json:"repeats"`
	UniqueRepeats int                  `json:"unique_repeats"`
	UniqueSpacers int                  `json:"unique_spacers"`
	Artifacts     []string             `json:"artifacts"`
}

// Run loads the stored snapshot, runs the pipeline and writes the crRNA
// FASTA, the repeats FASTA and a JSON summary under runs/<run-id>/.
func (s *Service) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary
	err := s.instrument(ctx, OpRun, func(ctx context.Context) error {
		summary.RunID = s.opts.newID()
		summary.StartedAt = s.opts.clock.Now()
		res, err := s.pipeline(ctx)
		if err != nil {
			return err
		}

		var rnas, repeats bytes.Buffer
		if err := fasta.WriteMatureRNAs(&rnas, res.MatureRNAs); err != nil {
			return err
		}
		if err := fasta.WriteRepeats(&repeats, res.Repeats); err != nil {
			return err
		}

		summary.Stages = res.Stages()
		summary.Diagnostics = res.Dataset.Diagnostics
		summary.Arrays = len(res.Arrays)
		summary.TypedArrays = res.TypedArrays()
		summary.MatureRNAs = len(res.MatureRNAs)
		summary.Repeats = len(res.Repeats)
		summary.UniqueRepeats = res.UniqueRepeats
		summary.UniqueSpacers = res.UniqueSpacers
		summary.Artifacts = []string{
			blob.RunKey(summary.RunID, blob.ArtifactMatureRNAs),
			blob.RunKey(summary.RunID, blob.ArtifactRepeats),
			blob.RunKey(summary.RunID, blob.ArtifactSummary),
		}

		meta := map[string]string{"run_id": summary.RunID}
		if _, err := blob.PutBytes(ctx, s.blobs, summary.Artifacts[0], rnas.Bytes(), blob.ContentTypeFASTA, meta); err != nil {
			return fmt.Errorf("store %s: %w", blob.ArtifactMatureRNAs, err)
		}
		if _, err := blob.PutBytes(ctx, s.blobs, summary.Artifacts[1], repeats.Bytes(), blob.ContentTypeFASTA, meta); err != nil {
			return fmt.Errorf("store %s: %w", blob.ArtifactRepeats, err)
		}
		summary.FinishedAt = s.opts.clock.Now()
		payload, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		if _, err := blob.PutBytes(ctx, s.blobs, summary.Artifacts[2], payload, blob.ContentTypeJSON, meta); err != nil {
			return fmt.Errorf("store %s: %w", blob.ArtifactSummary, err)
		}
		s.opts.logger.Info("pipeline run stored", "run_id", summary.RunID, "mature_rnas", summary.MatureRNAs, "repeats", summary.Repeats)
		return nil
	})
	if err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}

// Stats summarises a pipeline run without storing artifacts.
type Stats struct {
	Stages        []dataset.StageCount `json:"stages"`
	Arrays        int                  `json:"arrays"`
	TypedArrays   int                  `json:"typed_arrays"`
	MatureRNAs    int                  `json:"mature_rnas"`
	UniqueRepeats int                  `json:"unique_repeats"`
	UniqueSpacers int                  `json:"unique_spacers"`
}

// Stats runs the pipeline over the stored snapshot and reports its counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.instrument(ctx, OpStats, func(ctx context.Context) error {
		res, err := s.pipeline(ctx)
		if err != nil {
			return err
		}
		st = Stats{
			Stages:        res.Stages(),
			Arrays:        len(res.Arrays),
			TypedArrays:   res.TypedArrays(),
			MatureRNAs:    len(res.MatureRNAs),
			UniqueRepeats: res.UniqueRepeats,
			UniqueSpacers: res.UniqueSpacers,
		}
		return nil
	})
	return st, err
}

func (s *Service) pipeline(ctx context.Context) (PipelineResult, error) {
	tables, err := s.store.LoadTables(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoTables) {
			return PipelineResult{}, fmt.Errorf("load tables: %w (run import first)", err)
		}
		return PipelineResult{}, fmt.Errorf("load tables: %w", err)
	}
	assembler := crrna.NewAssembler(crrna.WithRegistry(s.opts.registry), crrna.WithWorkers(s.opts.workers))
	res, err := RunPipeline(ctx, tables, assembler, s.opts.registry)
	if err != nil {
		return PipelineResult{}, err
	}
	for _, st := range res.Stages() {
		s.opts.logger.Debug("pipeline stage", "stage", st.Stage, "rows", st.Rows)
		s.opts.metrics.ObserveStage(ctx, st.Stage, st.Rows)
	}
	for _, d := range res.Dataset.Diagnostics {
		s.opts.logger.Warn(d.Message, "kind", string(d.Kind), "table", string(d.Table), "column", d.Column)
	}
	return res, nil
}
