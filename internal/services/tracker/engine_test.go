package tracker_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/tracker"
)

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func report(machine, sec, yard int) messages.Report {
	return messages.Report{
		MachineID: machine,
		Timestamp: base.Add(time.Duration(sec) * time.Second),
		X:         float64(sec),
		Y:         float64(machine),
		YardID:    yard,
	}
}

func newEngine(t *testing.T, opts ...tracker.Option) *tracker.Engine {
	t.Helper()
	y1, err := entities.NewYard(1, 100, 1.0)
	require.NoError(t, err)
	y2, err := entities.NewYard(2, 500, 2.0)
	require.NoError(t, err)
	e, err := tracker.NewEngine([]*entities.Yard{y2, y1}, zap.NewNop(), opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_StayInsideEmitsOnSecondReport(t *testing.T) {
	e := newEngine(t)

	assert.Nil(t, e.Process(report(1, 0, 1)))
	evt := e.Process(report(1, 50, 1))
	require.NotNil(t, evt)

	assert.Equal(t, 1, evt.YardID)
	assert.Equal(t, entities.Band0, evt.OldStatus)
	assert.Equal(t, entities.Band40, evt.NewStatus)
	assert.Equal(t, 1, evt.MachineID)
	assert.Equal(t, 50.0, evt.WorkTimeAdded)
	assert.Equal(t, base.Add(50*time.Second), evt.Timestamp)

	y, _ := e.Yards().Get(1)
	assert.Equal(t, 50.0, y.CleanedArea)
}

func TestEngine_LeaveEmitsOnLeaveReport(t *testing.T) {
	e := newEngine(t)

	assert.Nil(t, e.Process(report(1, 0, 1)))
	evt := e.Process(report(1, 120, entities.NoYard))
	require.NotNil(t, evt)

	assert.Equal(t, entities.Band100, evt.NewStatus)
	assert.Equal(t, 120.0, evt.WorkTimeAdded)

	y, _ := e.Yards().Get(1)
	assert.Equal(t, 100.0, y.CleanedArea)
	assert.Equal(t, 120.0, y.TotalWorkTime)
}

func TestEngine_LongGapCreditsNothing(t *testing.T) {
	e := newEngine(t)
	e.Process(report(1, 0, 1))
	assert.Nil(t, e.Process(report(1, 5000, 1)))

	y, _ := e.Yards().Get(1)
	assert.Zero(t, y.TotalWorkTime)
}

func TestEngine_EntryAddsNoArea(t *testing.T) {
	e := newEngine(t)
	e.Process(report(1, 0, entities.NoYard))
	assert.Nil(t, e.Process(report(1, 30, 2)))

	y, _ := e.Yards().Get(2)
	assert.Zero(t, y.CleanedArea)
}

func TestEngine_UnknownYardIsTolerated(t *testing.T) {
	m := metrics.New()
	e := newEngine(t, tracker.WithMetrics(m))

	assert.Nil(t, e.Process(report(4, 0, 99)))
	assert.Nil(t, e.Process(report(4, 10, 99)))
	assert.Nil(t, e.Process(report(4, 20, entities.NoYard)))

	mach, ok := e.Machines().Get(4)
	require.True(t, ok)
	assert.Equal(t, 20.0, mach.DwellIn(99))
	assert.Equal(t, 0, e.Failed())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.YardEvents.WithLabelValues("unknown")))
}

func TestEngine_InvalidReportCountedAndSkipped(t *testing.T) {
	m := metrics.New()
	e := newEngine(t, tracker.WithMetrics(m))

	assert.Nil(t, e.Process(messages.Report{MachineID: -1, Timestamp: base}))
	assert.Nil(t, e.Process(report(1, 0, 1)))

	st := e.ProcessingStatistics()
	assert.Equal(t, 2, st.Processed)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Successful)
	assert.InDelta(t, 50.0, st.SuccessRate, 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesFailed))
	assert.Equal(t, 1, e.Machines().Len())
}

func TestEngine_SwitchYardsCreditsOutgoingOnly(t *testing.T) {
	e := newEngine(t)
	e.Process(report(1, 0, 1))
	evt := e.Process(report(1, 20, 2))
	require.NotNil(t, evt)
	assert.Equal(t, 1, evt.YardID)
	assert.Equal(t, entities.Band20, evt.NewStatus)

	y2, _ := e.Yards().Get(2)
	assert.Zero(t, y2.TotalWorkTime)
}

func TestEngine_MultipleMachinesShareYard(t *testing.T) {
	e := newEngine(t)
	e.Process(report(1, 0, 1))
	e.Process(report(2, 1, 1))
	e.Process(report(1, 10, 1))
	evt := e.Process(report(2, 11, 1))
	require.NotNil(t, evt)
	assert.Equal(t, entities.Band20, evt.NewStatus)
	assert.Equal(t, 2, evt.MachineID)
}

func TestEngine_DuplicateYardRejected(t *testing.T) {
	y1, _ := entities.NewYard(1, 100, 1)
	y1b, _ := entities.NewYard(1, 200, 1)
	_, err := tracker.NewEngine([]*entities.Yard{y1, y1b}, nil)
	assert.Error(t, err)
}

func TestEngine_FromRecords(t *testing.T) {
	e, err := tracker.NewEngineFromRecords([]messages.YardRecord{
		{YardID: 3, Area: 10, CleaningRate: 1},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Yards().Len())

	_, err = tracker.NewEngineFromRecords([]messages.YardRecord{{YardID: 3, Area: -1, CleaningRate: 1}}, nil)
	assert.Error(t, err)
}

func scenario() []messages.Report {
	var out []messages.Report
	yards := []int{1, 1, 1, 0, 2, 2, 2, 2, 0, 1, 1, 3, 0}
	for i, y := range yards {
		out = append(out, report(1, i*17, y))
		out = append(out, report(2, i*17+3, yards[(i+4)%len(yards)]))
	}
	return out
}

func run(t *testing.T, reports []messages.Report) (*tracker.Engine, []messages.TransitionEvent) {
	e := newEngine(t)
	var events []messages.TransitionEvent
	for _, r := range reports {
		if evt := e.Process(r); evt != nil {
			events = append(events, *evt)
		}
	}
	return e, events
}

func TestEngine_BatchIsDeterministic(t *testing.T) {
	e1, ev1 := run(t, scenario())
	e2, ev2 := run(t, scenario())

	assert.Equal(t, ev1, ev2)
	assert.Equal(t, e1.YardSummaries(), e2.YardSummaries())
	assert.Equal(t, e1.MachineSnapshots(), e2.MachineSnapshots())
	assert.NotEmpty(t, ev1)
	assert.Empty(t, e1.ValidateConsistency())
}

func TestEngine_EventsMatchHistory(t *testing.T) {
	e, events := run(t, scenario())

	perYard := map[int]int{}
	for _, ev := range events {
		perYard[ev.YardID]++
		assert.Greater(t, ev.NewStatus, ev.OldStatus)
	}
	for _, s := range e.YardSummaries() {
		assert.Equal(t, perYard[s.YardID], s.Transitions, "yard %d", s.YardID)
	}
}

func TestEngine_Snapshots(t *testing.T) {
	e := newEngine(t)
	e.Process(report(7, 0, 2))
	e.Process(report(3, 0, entities.NoYard))

	snaps := e.MachineSnapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, 3, snaps[0].MachineID)
	assert.Equal(t, entities.NoYard, snaps[0].CurrentYardID)
	assert.Equal(t, 7, snaps[1].MachineID)
	assert.Equal(t, 2, snaps[1].CurrentYardID)

	sums := e.YardSummaries()
	require.Len(t, sums, 2)
	assert.Equal(t, 1, sums[0].YardID)
	assert.Equal(t, 100.0, sums[0].EstimatedSeconds)
}
