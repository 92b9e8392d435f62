package core

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "crisprcore"

// Keys of the expvar map maintained by ExpvarMetricsRecorder.
const (
	ExpvarDurations = "duration_ms_total"
	ExpvarResults   = "results_total"
	ExpvarStageRows = "stage_rows"
)

var expvarMu sync.Mutex

// ExpvarMetricsRecorder mirrors operation and stage metrics into a published
// expvar.Map. Result counters are keyed "<operation>.<status>".
type ExpvarMetricsRecorder struct {
	vars      *expvar.Map
	durations *expvar.Map
	results   *expvar.Map
	stages    *expvar.Map
}

// NewExpvarMetricsRecorder publishes a map under name, or attaches to the map
// an earlier recorder published there.
func NewExpvarMetricsRecorder(name string) (*ExpvarMetricsRecorder, error) {
	if name == "" {
		return nil, errors.New("expvar name required")
	}
	expvarMu.Lock()
	defer expvarMu.Unlock()

	var vars *expvar.Map
	switch v := expvar.Get(name).(type) {
	case nil:
		vars = expvar.NewMap(name)
	case *expvar.Map:
		vars = v
	default:
		return nil, fmt.Errorf("expvar %q holds %T", name, v)
	}
	return &ExpvarMetricsRecorder{
		vars:      vars,
		durations: childMap(vars, ExpvarDurations),
		results:   childMap(vars, ExpvarResults),
		stages:    childMap(vars, ExpvarStageRows),
	}, nil
}

func childMap(parent *expvar.Map, key string) *expvar.Map {
	if m, ok := parent.Get(key).(*expvar.Map); ok {
		return m
	}
	m := new(expvar.Map)
	parent.Set(key, m)
	return m
}

// Vars returns the published map.
func (r *ExpvarMetricsRecorder) Vars() *expvar.Map { return r.vars }

// WriteJSON writes the current values as a single JSON object.
func (r *ExpvarMetricsRecorder) WriteJSON(w io.Writer) error {
	_, err := io.WriteString(w, r.vars.String()+"\n")
	return err
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.durations.AddFloat(operation, float64(duration)/float64(time.Millisecond))
	r.results.Add(operation+"."+statusLabel(success), 1)
}

// ObserveStage implements MetricsRecorder. Only the latest row count is kept.
func (r *ExpvarMetricsRecorder) ObserveStage(_ context.Context, stage string, rows int) {
	if stage == "" {
		return
	}
	v := new(expvar.Int)
	v.Set(int64(rows))
	r.stages.Set(stage, v)
}

// PrometheusMetricsRecorder exports operation latency, outcome counters and
// stage row gauges.
type PrometheusMetricsRecorder struct {
	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	rows     *prometheus.GaugeVec
}

// NewPrometheusMetricsRecorder registers the collectors on reg. When another
// recorder already registered them on reg the existing collectors are shared.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of import, export, run and stats operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"operation"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "operation_results_total",
			Help:      "Finished operations by status.",
		}, []string{"operation", "status"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "stage_rows",
			Help:      "Rows left after each pipeline stage of the latest run.",
		}, []string{"stage"}),
	}
	if err := adopt(reg, &r.latency); err != nil {
		return nil, err
	}
	if err := adopt(reg, &r.outcomes); err != nil {
		return nil, err
	}
	if err := adopt(reg, &r.rows); err != nil {
		return nil, err
	}
	return r, nil
}

// adopt registers *c, swapping in the collector already on reg when the
// descriptors match.
func adopt[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		if existing, ok := dup.ExistingCollector.(C); ok {
			*c = existing
			return nil
		}
	}
	return fmt.Errorf("register %T: %w", *c, err)
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
	r.outcomes.WithLabelValues(operation, statusLabel(success)).Inc()
}

// ObserveStage implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) ObserveStage(_ context.Context, stage string, rows int) {
	if stage == "" {
		return
	}
	r.rows.WithLabelValues(stage).Set(float64(rows))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// TeeMetrics returns a recorder forwarding to every non-nil recorder in order.
func TeeMetrics(recorders ...MetricsRecorder) MetricsRecorder {
	var tee metricsTee
	for _, r := range recorders {
		if r != nil {
			tee = append(tee, r)
		}
	}
	switch len(tee) {
	case 0:
		return noopMetrics{}
	case 1:
		return tee[0]
	}
	return tee
}

type metricsTee []MetricsRecorder

func (t metricsTee) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range t {
		r.Observe(ctx, operation, success, duration)
	}
}

func (t metricsTee) ObserveStage(ctx context.Context, stage string, rows int) {
	for _, r := range t {
		r.ObserveStage(ctx, stage, rows)
	}
}

// SpanRecord is one finished operation as written by JSONTracer.
type SpanRecord struct {
	Operation string    `json:"op"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	Start     time.Time `json:"start"`
	ElapsedMS float64   `json:"elapsed_ms"`
}

// JSONTracer appends one JSON line per finished span to a writer.
type JSONTracer struct {
	clock Clock

	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJSONTracer writes spans to w. A nil clock uses time.Now.
func NewJSONTracer(w io.Writer, clock Clock) *JSONTracer {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	return &JSONTracer{clock: clock, enc: json.NewEncoder(w)}
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, start: t.clock.Now()}
}

// Err reports the first write failure.
func (t *JSONTracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *JSONTracer) emit(rec SpanRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if err := t.enc.Encode(rec); err != nil {
		t.err = fmt.Errorf("write span %s: %w", rec.Operation, err)
	}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	start     time.Time
	once      sync.Once
}

func (s *jsonSpan) End(err error) {
	s.once.Do(func() {
		rec := SpanRecord{
			Operation: s.operation,
			OK:        err == nil,
			Start:     s.start.UTC(),
			ElapsedMS: float64(s.tracer.clock.Now().Sub(s.start)) / float64(time.Millisecond),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		s.tracer.emit(rec)
	})
}
