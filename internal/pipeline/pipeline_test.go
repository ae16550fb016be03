package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/observability"
	"github.com/couchcryptid/geode/internal/pipeline"
	"github.com/couchcryptid/geode/internal/plan"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawMessage
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	if m.err != nil {
		return domain.OutputMessage{}, m.err
	}
	return domain.OutputMessage{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputMessage
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, msgs []domain.OutputMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, msgs...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use unregistered collectors to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func planMessage(id, body string) domain.RawMessage {
	return domain.RawMessage{Key: []byte(id), Value: []byte(body), Topic: "geode-plans"}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := planMessage("q-1", `{"id":"q-1"}`)

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	assert.True(t, p.Ready())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	committed := false
	raw := planMessage("bad", "not json")
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("decode plan")}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.False(t, p.Ready())
	assert.True(t, committed)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int32
	batch := make([]domain.RawMessage, 3)
	for i := range batch {
		batch[i] = planMessage("q", `{}`)
		batch[i].Commit = func(_ context.Context) error {
			commits.Add(1)
			return nil
		}
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{batch}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, ldr.loaded, 3)
	assert.Equal(t, int32(3), commits.Load())
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	committed := false
	raw := planMessage("q", `{}`)
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.False(t, committed)
	assert.False(t, p.Ready())
}

// statusTransformer rejects "garbage" bodies and marks plans keyed "fail-*"
// as failed.
type statusTransformer struct{}

func (statusTransformer) Transform(_ context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	if string(raw.Value) == "garbage" {
		return domain.OutputMessage{}, errors.New("decode plan")
	}
	headers := map[string]string{"status": "ok"}
	if bytes.HasPrefix(raw.Key, []byte("fail")) {
		headers["status"] = "error"
		headers["error-kind"] = domain.KindNotFound
	}
	return domain.OutputMessage{Key: raw.Key, Value: raw.Value, Headers: headers}, nil
}

func TestPipeline_Run_MixedPlanOutcomes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var commits atomic.Int32
	batch := []domain.RawMessage{
		planMessage("q-1", `{}`),
		planMessage("fail-2", `{}`),
		planMessage("q-3", "garbage"),
		planMessage("q-4", `{}`),
	}
	for i := range batch {
		batch[i].Commit = func(_ context.Context) error {
			commits.Add(1)
			return nil
		}
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{batch}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(ext, statusTransformer{}, ldr, logger, metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	// Failed plans are still published; only the undecodable one is dropped.
	require.Len(t, ldr.loaded, 3)
	assert.Equal(t, "error", ldr.loaded[1].Headers["status"])
	assert.Equal(t, int32(4), commits.Load())
	assert.True(t, p.Ready())
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"plan results published"`)
	assert.Contains(t, logs, `"succeeded":2`)
	assert.Contains(t, logs, `"failed":1`)
	assert.Contains(t, logs, `"undecodable":1`)
	assert.Contains(t, logs, `"plan_id":"fail-2"`)
	assert.Contains(t, logs, `"error_kind":"not_found"`)
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("connection refused")}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

type stubLocator struct{}

func (stubLocator) Locate(_ context.Context, name string) (domain.Place, error) {
	if name != "Atlanta" {
		return domain.Place{}, domain.ErrNotFound
	}
	return domain.Place{
		Name:   "Atlanta",
		Center: domain.LatLon{Lat: 33.75, Lon: -84.39},
		BBox:   domain.BBox{MinLat: 33.6, MaxLat: 33.9, MinLon: -84.6, MaxLon: -84.2},
	}, nil
}

type constantField struct{ v float64 }

func (c constantField) SampleField(_ context.Context, _ string, coords []domain.LatLon) ([]float64, error) {
	out := make([]float64, len(coords))
	for i, co := range coords {
		out[i] = c.v + co.Lat
	}
	return out, nil
}

func (c constantField) SamplePoint(_ context.Context, _ string, _ domain.LatLon) (float64, error) {
	return c.v, nil
}

func newPlanTransformer() *pipeline.PlanTransformer {
	ex := plan.NewExecutor(stubLocator{}, constantField{v: 10}, plan.Config{GridSize: 6, FieldSamples: 12}, discardLogger(), newTestMetrics())
	return pipeline.NewTransformer(ex, discardLogger())
}

func TestPlanTransformer_Transform(t *testing.T) {
	tfm := newPlanTransformer()

	t.Run("successful plan", func(t *testing.T) {
		out, err := tfm.Transform(context.Background(), planMessage("q-1", `{"id":"q-1","steps":[
			{"id":"pt","op":"point_location","args":{"name":"Atlanta"}},
			{"id":"t","op":"field_at","args":{"patch":"pt","variable":"temperature_2m"}}]}`))
		require.NoError(t, err)
		assert.Equal(t, []byte("q-1"), out.Key)
		assert.Equal(t, "ok", out.Headers["status"])
		assert.Equal(t, "application/json", out.Headers["content-type"])
		assert.NotContains(t, out.Headers, "error-kind")

		res, err := plan.DecodeResult(out.Value)
		require.NoError(t, err)
		assert.Equal(t, plan.StatusOK, res.Status)
		require.NotNil(t, res.Patch)
		require.Len(t, res.Patch.Points, 2)
		assert.Equal(t, 10.0, *res.Patch.Points[1].Value)
	})

	t.Run("failed plan still yields a result", func(t *testing.T) {
		out, err := tfm.Transform(context.Background(), planMessage("q-2", `{"id":"q-2","steps":[
			{"id":"pt","op":"patch_location","args":{"name":"Nowhere"}}]}`))
		require.NoError(t, err)
		assert.Equal(t, "error", out.Headers["status"])
		assert.Equal(t, domain.KindNotFound, out.Headers["error-kind"])

		res, err := plan.DecodeResult(out.Value)
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, "pt", res.Error.Step)
	})

	t.Run("undecodable message", func(t *testing.T) {
		_, err := tfm.Transform(context.Background(), planMessage("x", `{{{`))
		assert.Error(t, err)
	})
}
