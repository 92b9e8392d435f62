package core

import (
	"context"
	"sync"
	"time"
)

const sampleDump = `COPY public.region (id, sequence, category) FROM stdin;
1	GGATTTAGAGCTTTTTTT	1
2	ACGTACGTAC	3
\.

COPY public.crisprlocus_region (region, crisprlocus, start, length) FROM stdin;
1	10	100	18
2	10	118	10
1	10	128	18
\.

COPY public.crisprlocus (id, sequence, start, length, evidencelevel, orientation, potentialorientation) FROM stdin;
10	500	100	46	4	1	1
11	501	0	10	\N	2	2
\.

COPY public.clustercas (sequence, class) FROM stdin;
500	CAS-TypeI-A
501	\N
\.

COPY public.sequence (id, strain) FROM stdin;
500	7
501	8
\.
`

const (
	wantMatureFASTA  = ">sequence_0|subtype:CAS-TypeI-A\nCTTTTTTTACGTACGTACGGATTTAGAG\n"
	wantRepeatsFASTA = ">sequence_1|subtype:CAS-TypeI-A\nGGATTTAGAGCTTTTTTT\n"
)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) })
}

func sequentialIDs(ids ...string) func() string {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu     sync.Mutex
	calls  []metricsCall
	stages map[string]int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) ObserveStage(_ context.Context, stage string, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stages == nil {
		c.stages = make(map[string]int)
	}
	c.stages[stage] = rows
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}
