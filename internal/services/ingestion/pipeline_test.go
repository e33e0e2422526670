package ingestion_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/ingestion"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/tracker"
	ts "github.com/LeonardoBeccarini/yard_tracker/internal/transport-simulator"
)

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *tracker.Engine {
	t.Helper()
	e, err := tracker.NewEngineFromRecords([]messages.YardRecord{
		{YardID: 1, Area: 100, CleaningRate: 1},
		{YardID: 2, Area: 500, CleaningRate: 2},
	}, zap.NewNop())
	require.NoError(t, err)
	return e
}

// two machines, each staying in its own yard for two minutes
func workload() []messages.Report {
	var out []messages.Report
	for sec := 0; sec <= 120; sec += 10 {
		at := base.Add(time.Duration(sec) * time.Second)
		out = append(out,
			messages.Report{MachineID: 1, Timestamp: at, X: 1, Y: 1, YardID: 1},
			messages.Report{MachineID: 2, Timestamp: at, X: 5, Y: 5, YardID: 2},
		)
	}
	return out
}

func newPipeline(t *testing.T, opts ingestion.Options) *ingestion.Pipeline {
	t.Helper()
	p, err := ingestion.New(newEngine(t), zap.NewNop(), opts)
	require.NoError(t, err)
	return p
}

func TestRunBatch_EmitsTransitionsInOrder(t *testing.T) {
	p := newPipeline(t, ingestion.DefaultOptions())
	assert.Nil(t, p.Snapshot())

	events, err := p.RunBatch(workload())
	require.NoError(t, err)
	require.Len(t, events, 7)

	var yard1 []entities.Band
	for i, e := range events {
		if i > 0 {
			assert.False(t, e.Timestamp.Before(events[i-1].Timestamp))
		}
		if e.YardID == 1 {
			yard1 = append(yard1, e.NewStatus)
		}
	}
	assert.Equal(t, []entities.Band{entities.Band20, entities.Band40, entities.Band60, entities.Band80, entities.Band100}, yard1)

	snap := p.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.Done)
	assert.Equal(t, 26, snap.Processed)
	assert.Equal(t, 7, snap.Transitions)
	assert.Nil(t, snap.Transport)
	assert.Equal(t, events, p.Events())
	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, p.RunID(), snap.RunID)

	_, err = p.RunBatch(workload())
	assert.ErrorIs(t, err, ingestion.ErrAlreadyStarted)
}

func TestRunRealtime_MatchesBatchWithoutLoss(t *testing.T) {
	batch, err := newPipeline(t, ingestion.DefaultOptions()).RunBatch(workload())
	require.NoError(t, err)

	cfg := ts.DefaultConfig()
	cfg.LossRate = 0
	cfg.CoordinateErrorRate = 0
	sim, err := ts.NewSimulator(cfg, zap.NewNop(),
		ts.WithRand(rand.New(rand.NewSource(1))),
		ts.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	require.NoError(t, err)

	m := metrics.New()
	opts := ingestion.DefaultOptions()
	opts.QueueSize = 4
	opts.Metrics = m
	p := newPipeline(t, opts)

	events, err := p.RunRealtime(context.Background(), workload(), sim)
	require.NoError(t, err)
	assert.Equal(t, batch, events)

	snap := p.Snapshot()
	require.NotNil(t, snap.Transport)
	assert.EqualValues(t, 26, snap.Transport.Delivered)
	assert.True(t, snap.Done)
	assert.Zero(t, testutil.ToFloat64(m.QueueDepth))
}

func TestRunRealtime_LossyLinkStillCompletes(t *testing.T) {
	cfg := ts.DefaultConfig()
	cfg.LossRate = 0.5
	sim, err := ts.NewSimulator(cfg, nil,
		ts.WithRand(rand.New(rand.NewSource(3))),
		ts.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	require.NoError(t, err)

	p := newPipeline(t, ingestion.DefaultOptions())
	_, err = p.RunRealtime(context.Background(), workload(), sim)
	require.NoError(t, err)

	st := sim.Stats()
	assert.EqualValues(t, st.Delivered, p.Engine().Processed())
	assert.Empty(t, p.Engine().ValidateConsistency())
}

func TestConsumer_WaitsForEndOfStream(t *testing.T) {
	opts := ingestion.DefaultOptions()
	opts.PollTimeout = 5 * time.Millisecond
	opts.ProgressEvery = 1
	p := newPipeline(t, opts)

	frames, err := p.Start()
	require.NoError(t, err)
	_, err = p.Start()
	assert.ErrorIs(t, err, ingestion.ErrAlreadyStarted)

	frames <- messages.ReportFrame(messages.Report{MachineID: 1, Timestamp: base, YardID: 1})
	frames <- messages.Frame{}
	frames <- messages.ReportFrame(messages.Report{MachineID: 1, Timestamp: base.Add(30 * time.Second), YardID: 1})

	// several poll timeouts pass without ending the run
	time.Sleep(50 * time.Millisecond)
	select {
	case <-p.Done():
		t.Fatal("consumer stopped without end-of-stream")
	default:
	}
	assert.Nil(t, p.Events())

	require.Eventually(t, func() bool {
		s := p.Snapshot()
		return s != nil && s.Processed == 2
	}, time.Second, 5*time.Millisecond)

	frames <- messages.EndOfStream()
	p.Wait()

	events := p.Events()
	require.Len(t, events, 1)
	assert.Equal(t, entities.Band20, events[0].NewStatus)
	assert.True(t, p.Snapshot().Done)
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := ingestion.New(nil, nil, ingestion.DefaultOptions())
	assert.ErrorIs(t, err, ingestion.ErrNilEngine)

	_, err = ingestion.New(newEngine(t), nil, ingestion.Options{QueueSize: -1})
	assert.ErrorIs(t, err, ingestion.ErrInvalidBuffer)

	p, err := ingestion.New(newEngine(t), nil, ingestion.Options{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", p.RunID())
	_, err = p.RunRealtime(context.Background(), nil, nil)
	assert.Error(t, err)
}
