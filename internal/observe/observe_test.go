package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/traverse/internal/logger"
)

type recorder struct {
	name string
	log  *[]string
}

func (r recorder) Start(ctx context.Context, op string, _ ...Attr) (context.Context, Finish) {
	*r.log = append(*r.log, r.name+":start:"+op)
	return ctx, func(error) { *r.log = append(*r.log, r.name+":finish:"+op) }
}

func (r recorder) Event(_ context.Context, name string, _ ...Attr) {
	*r.log = append(*r.log, r.name+":event:"+name)
}

func TestMulti_FanOutAndNesting(t *testing.T) {
	var log []string
	o := Multi(recorder{"a", &log}, nil, recorder{"b", &log})

	_, finish := o.Start(context.Background(), "submit")
	o.Event(context.Background(), EventAttemptRecorded)
	finish(nil)

	assert.Equal(t, []string{
		"a:start:submit", "b:start:submit",
		"a:event:attempt_recorded", "b:event:attempt_recorded",
		"b:finish:submit", "a:finish:submit",
	}, log)
}

func TestMulti_Collapses(t *testing.T) {
	assert.Equal(t, Nop(), Multi())
	assert.Equal(t, Nop(), Multi(nil, nil))

	var log []string
	r := recorder{"only", &log}
	assert.Equal(t, Observer(r), Multi(r))
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop(), OrNop(nil))
}

func TestLookup(t *testing.T) {
	attrs := []Attr{String("op", "grade"), Int("attempts", 3)}
	assert.Equal(t, "grade", Lookup(attrs, "op"))
	assert.Equal(t, "3", Lookup(attrs, "attempts"))
	assert.Equal(t, "", Lookup(attrs, "missing"))
}

func TestMetrics_Events(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.Event(ctx, EventAttemptRecorded, String("status", "blocked"))
	m.Event(ctx, EventAttemptRecorded, String("status", "blocked"))
	m.Event(ctx, EventRemediationApplied)
	m.Event(ctx, EventRemediationAbandon, String("reason", "synthesis_failed"))
	m.Event(ctx, EventGatewayDegraded, String("op", "grade_answer"), String("reason", "malformed"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remediations.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remediations.WithLabelValues("abandoned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues("grade_answer", "malformed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(EventAttemptRecorded)))
}

func TestLookupFloat(t *testing.T) {
	attrs := []Attr{Float("score", 0.75), Int("nodes", 4), String("op", "x")}

	v, ok := LookupFloat(attrs, "score")
	assert.True(t, ok)
	assert.InDelta(t, 0.75, v, 1e-9)

	v, ok = LookupFloat(attrs, "nodes")
	assert.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)

	_, ok = LookupFloat(attrs, "op")
	assert.False(t, ok)
	_, ok = LookupFloat(attrs, "missing")
	assert.False(t, ok)
}

func TestMetrics_DagQuality(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.Event(ctx, EventDagQuality, Float("score", 0.8), Bool("fallback", false))
	m.Event(ctx, EventDagQuality, Float("score", 0.6), Bool("fallback", false))
	m.Event(ctx, EventDagQuality, Float("score", 0.5), Bool("fallback", true))

	assert.Equal(t, 2, testutil.CollectAndCount(m.dagQuality, "traverse_dag_quality_score"))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.events.WithLabelValues(EventDagQuality)))
}

func TestMetrics_Duration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	_, finish := m.Start(context.Background(), "submit_answer")
	finish(errors.New("boom"))

	assert.Equal(t, 1, testutil.CollectAndCount(m.duration, "traverse_operation_duration_seconds"))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestTracing_SpansAndEvents(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	o := NewTracing(tp.Tracer("test"))

	ctx, finish := o.Start(context.Background(), "remediate", String("node_id", "n1"))
	o.Event(ctx, EventRemediationApplied, Int("attempts", 3))
	finish(errors.New("lost race"))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "remediate", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	var names []string
	for _, ev := range span.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, EventRemediationApplied)
}

func TestInitTracing_Disabled(t *testing.T) {
	tracer, shutdown, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	assert.NotNil(t, tracer)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_ExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	tracer, shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Writer: &buf})
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "create_path")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "create_path")
}

func TestLogging_WritesEventsAndFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	o := NewLogging(logger.FromZap(zap.New(core)))

	ctx, finish := o.Start(context.Background(), "submit_answer", String("user_id", "u1"))
	o.Event(ctx, EventAttemptRecorded, String("status", "in_progress"))
	finish(errors.New("busy"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, EventAttemptRecorded, entries[0].Message)
	assert.Equal(t, "operation failed", entries[1].Message)
	assert.Equal(t, "submit_answer", entries[1].ContextMap()["op"])
}
