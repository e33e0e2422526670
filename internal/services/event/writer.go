package event

import (
	"context"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

// PointWriter is the part of the Influx non-blocking write API the sink needs.
type PointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Writer tracks asynchronous Influx write errors for /healthz and /readyz
// and counts points per measurement.
type Writer struct {
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
	now     func() time.Time
}

// NewWriter drains errs (the WriteAPI error channel) until it is closed.
func NewWriter(errs <-chan error, log *zap.Logger) *Writer {
	log = logger.OrNop(log)
	ww := &Writer{
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
		now:     time.Now,
	}
	if errs != nil {
		go func() {
			for err := range errs {
				if err != nil {
					ww.mu.Lock()
					ww.lastErr = ww.now()
					ww.mu.Unlock()
					log.Warn("influx write error", zap.Error(err))
				}
			}
		}()
	}
	return ww
}

// LastErrorAge is the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return w.now().Sub(t)
}

func (w *Writer) MarkIngest(measurement string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.counts[measurement]++
	w.mu.Unlock()
}

func (w *Writer) Count(measurement string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[measurement]
	w.mu.RUnlock()
	return c
}

// InfluxSink writes transitions and yard summaries as points.
type InfluxSink struct {
	api    PointWriter
	writer *Writer
}

func NewInfluxSink(api PointWriter, w *Writer) *InfluxSink {
	return &InfluxSink{api: api, writer: w}
}

func (s *InfluxSink) Name() string { return "influx" }

// Publish queues the point; write failures surface through Writer.
func (s *InfluxSink) Publish(_ context.Context, evt messages.TransitionEvent) error {
	s.api.WritePoint(TransitionToPoint(evt))
	s.writer.MarkIngest(MeasurementTransition)
	return nil
}

// WriteSummaries records the final state of every yard and flushes.
func (s *InfluxSink) WriteSummaries(summaries []messages.YardSummary, at time.Time) {
	for _, ys := range summaries {
		s.api.WritePoint(SummaryToPoint(ys, at))
		s.writer.MarkIngest(MeasurementSummary)
	}
	s.api.Flush()
}
