package tracker

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/dedup"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

// ErrUnknownYard is reported (never returned by Process) when a report
// references a yard that is not in the directory.
var ErrUnknownYard = errors.New("unknown yard")

const (
	defaultNoteTTL = 10 * time.Minute
	defaultNoteCap = 10000
)

// Engine turns telemetry reports into machine bookkeeping and yard progress.
// It is not safe for concurrent use: exactly one goroutine may call Process.
type Engine struct {
	yards    *YardStore
	machines *MachineStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
	notes    *dedup.Deduper

	processed int
	failed    int
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithNoteDeduper sets the suppressor used for repeated unknown-yard notes.
func WithNoteDeduper(d *dedup.Deduper) Option { return func(e *Engine) { e.notes = d } }

func NewEngine(yards []*entities.Yard, log *zap.Logger, opts ...Option) (*Engine, error) {
	store, err := NewYardStore(yards)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		yards:    store,
		machines: NewMachineStore(),
		logger:   logger.OrNop(log),
		notes:    dedup.New(defaultNoteTTL, defaultNoteCap),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewEngineFromRecords builds the yards from directory records.
func NewEngineFromRecords(records []messages.YardRecord, log *zap.Logger, opts ...Option) (*Engine, error) {
	yards := make([]*entities.Yard, 0, len(records))
	for _, rec := range records {
		y, err := rec.Yard()
		if err != nil {
			return nil, fmt.Errorf("yard directory: %w", err)
		}
		yards = append(yards, y)
	}
	return NewEngine(yards, log, opts...)
}

// Process applies one report and returns the band transition it caused,
// if any. Faults are counted and logged; the report is then skipped.
func (e *Engine) Process(r messages.Report) (evt *messages.TransitionEvent) {
	e.processed++
	failed := false
	defer func() {
		if rec := recover(); rec != nil {
			e.failed++
			failed = true
			evt = nil
			e.logger.Error("panic while processing report",
				zap.Int("machine_id", r.MachineID), zap.Any("panic", rec))
		}
		e.metrics.Processed(failed)
	}()

	e.logger.Debug("report received",
		zap.Int("seq", e.processed),
		zap.Int("machine_id", r.MachineID),
		zap.Float64("x", r.X), zap.Float64("y", r.Y),
		zap.Int("yard_id", r.YardID),
		zap.Time("timestamp", r.Timestamp))

	evt, err := e.process(r)
	if err != nil {
		e.failed++
		failed = true
		e.logger.Error("report skipped", zap.Int("machine_id", r.MachineID), zap.Error(err))
		return nil
	}
	return evt
}

func (e *Engine) process(r messages.Report) (*messages.TransitionEvent, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	m, created := e.machines.GetOrCreate(r.MachineID)
	if created {
		e.logger.Debug("machine registered", zap.Int("machine_id", m.ID))
	}

	ch := m.ApplyReport(r.Observation())
	if ch.PositionChanged {
		e.logger.Debug("machine moved", zap.Int("machine_id", m.ID),
			zap.Float64("x", m.Position.X), zap.Float64("y", m.Position.Y))
	}

	if ch.YardChanged {
		return e.handleYardChange(m, ch, r.Timestamp), nil
	}
	if ch.DwellSeconds <= 0 {
		return nil, nil
	}
	y, err := e.yard(m.CurrentYard)
	if err != nil {
		e.noteUnknownYard(m.ID, m.CurrentYard)
		return nil, nil
	}
	return e.credit(y, m.ID, ch.DwellSeconds, r.Timestamp), nil
}

func (e *Engine) handleYardChange(m *entities.Machine, ch entities.Change, ts time.Time) *messages.TransitionEvent {
	var evt *messages.TransitionEvent

	if ch.LeftYard != entities.NoYard {
		e.metrics.YardEvent("leave")
		e.logger.Info("machine left yard",
			zap.Int("machine_id", m.ID), zap.Int("yard_id", ch.LeftYard),
			zap.Float64("worked_seconds", ch.DwellSeconds))
		if ch.DwellSeconds > 0 {
			if y, err := e.yard(ch.LeftYard); err == nil {
				evt = e.credit(y, m.ID, ch.DwellSeconds, ts)
			} else {
				e.noteUnknownYard(m.ID, ch.LeftYard)
			}
		}
	}

	if ch.EnteredYard != entities.NoYard {
		e.metrics.YardEvent("enter")
		if y, err := e.yard(ch.EnteredYard); err == nil {
			e.logger.Info("machine entered yard",
				zap.Int("machine_id", m.ID), zap.Int("yard_id", y.ID),
				zap.Float64("completion_pct", y.CompletionPercentage()))
		} else {
			e.noteUnknownYard(m.ID, ch.EnteredYard)
		}
	}
	return evt
}

func (e *Engine) credit(y *entities.Yard, machineID int, seconds float64, ts time.Time) *messages.TransitionEvent {
	old := y.Status
	band, changed := y.CreditWork(seconds)
	e.logger.Debug("work credited",
		zap.Int("machine_id", machineID), zap.Int("yard_id", y.ID),
		zap.Float64("seconds", seconds), zap.Float64("completion_pct", y.CompletionPercentage()))
	if !changed {
		return nil
	}

	e.metrics.Transition(band.String())
	e.logger.Info("yard status changed",
		zap.Int("yard_id", y.ID), zap.Int("machine_id", machineID),
		zap.Stringer("old", old), zap.Stringer("new", band),
		zap.Float64("completion_pct", y.CompletionPercentage()))
	return &messages.TransitionEvent{
		YardID:        y.ID,
		OldStatus:     old,
		NewStatus:     band,
		Timestamp:     ts,
		MachineID:     machineID,
		WorkTimeAdded: seconds,
	}
}

func (e *Engine) yard(id int) (*entities.Yard, error) {
	y, ok := e.yards.Get(id)
	if !ok {
		return nil, fmt.Errorf("yard %d: %w", id, ErrUnknownYard)
	}
	return y, nil
}

func (e *Engine) noteUnknownYard(machineID, yardID int) {
	e.metrics.YardEvent("unknown")
	if !e.notes.ShouldProcess(dedup.Key("unknown-yard", machineID, yardID)) {
		return
	}
	e.logger.Warn("report references a yard missing from the directory",
		zap.Int("machine_id", machineID), zap.Int("yard_id", yardID), zap.Error(ErrUnknownYard))
}

// Processed is the number of reports handed to Process, including failures.
func (e *Engine) Processed() int { return e.processed }

// Failed is the number of reports skipped because of a fault.
func (e *Engine) Failed() int { return e.failed }

func (e *Engine) Yards() *YardStore { return e.yards }

func (e *Engine) Machines() *MachineStore { return e.machines }

// MachineSnapshots returns the current view of all machines by id.
func (e *Engine) MachineSnapshots() []messages.MachineSnapshot {
	out := make([]messages.MachineSnapshot, 0, e.machines.Len())
	e.machines.Each(func(m *entities.Machine) {
		out = append(out, messages.MachineSnapshot{
			MachineID:     m.ID,
			X:             m.Position.X,
			Y:             m.Position.Y,
			CurrentYardID: m.CurrentYard,
			YardsWorked:   m.YardsWorked(),
		})
	})
	return out
}

// YardSummaries returns the progress summary of all yards by id.
func (e *Engine) YardSummaries() []messages.YardSummary {
	out := make([]messages.YardSummary, 0, e.yards.Len())
	e.yards.Each(func(y *entities.Yard) {
		out = append(out, messages.YardSummary{
			YardID:               y.ID,
			Area:                 y.Area,
			CleaningRate:         y.CleaningRate,
			CompletionPercentage: y.CompletionPercentage(),
			CleanedArea:          y.CleanedArea,
			RemainingArea:        y.RemainingArea(),
			TotalWorkTime:        y.TotalWorkTime,
			Status:               y.Status,
			Transitions:          y.Transitions(),
			EstimatedSeconds:     y.EstimatedCompletion().Seconds(),
		})
	})
	return out
}
