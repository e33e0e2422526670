package ingestion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/event"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/tracker"
	transportSimulator "github.com/LeonardoBeccarini/yard_tracker/internal/transport-simulator"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

var (
	ErrAlreadyStarted = errors.New("pipeline already started")
	ErrNilEngine      = errors.New("nil engine")
	ErrInvalidBuffer  = errors.New("queue size must not be negative")
)

const (
	DefaultQueueSize     = 1024
	DefaultPollTimeout   = time.Second
	DefaultProgressEvery = 5
)

// Options tune the consumer. Zero values fall back to the defaults, except
// QueueSize where 0 means an unbuffered hand-off. An empty RunID gets a
// random UUID.
type Options struct {
	RunID         string
	QueueSize     int
	PollTimeout   time.Duration
	ProgressEvery int

	Metrics    *metrics.Metrics
	Dispatcher *event.Dispatcher
}

func DefaultOptions() Options {
	return Options{
		QueueSize:     DefaultQueueSize,
		PollTimeout:   DefaultPollTimeout,
		ProgressEvery: DefaultProgressEvery,
	}
}

// Pipeline feeds reports into the engine. In realtime mode a single consumer
// goroutine owns the engine; producers only touch the frame channel, and
// readers use Snapshot.
type Pipeline struct {
	engine  *tracker.Engine
	logger  *zap.Logger
	opts    Options
	metrics *metrics.Metrics

	frames  chan messages.Frame
	done    chan struct{}
	started atomic.Bool

	mu        sync.Mutex
	transport func() messages.TransportStats

	snap       atomic.Pointer[messages.Snapshot]
	events     []messages.TransitionEvent
	startedAt  time.Time
	lastLogged int
}

func New(engine *tracker.Engine, log *zap.Logger, opts Options) (*Pipeline, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	if opts.QueueSize < 0 {
		return nil, ErrInvalidBuffer
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	return &Pipeline{
		engine:  engine,
		logger:  logger.OrNop(log).With(zap.String("run_id", opts.RunID)),
		opts:    opts,
		metrics: opts.Metrics,
		frames:  make(chan messages.Frame, opts.QueueSize),
		done:    make(chan struct{}),
	}, nil
}

// RunBatch processes reports in order on the caller's goroutine and returns
// every transition produced.
func (p *Pipeline) RunBatch(reports []messages.Report) ([]messages.TransitionEvent, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	p.startedAt = time.Now()
	p.logger.Info("batch processing started", zap.Int("messages", len(reports)))

	for _, r := range reports {
		p.handle(r)
	}
	p.publishSnapshot(true)
	close(p.done)

	p.logger.Info("batch processing finished",
		zap.Int("processed", p.engine.Processed()),
		zap.Int("failed", p.engine.Failed()),
		zap.Int("transitions", len(p.events)),
		zap.Duration("elapsed", time.Since(p.startedAt)))
	return p.events, nil
}

// Start launches the consumer goroutine and returns the channel producers
// write to. The consumer stops only after receiving messages.EndOfStream.
func (p *Pipeline) Start() (chan<- messages.Frame, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	p.startedAt = time.Now()
	p.publishSnapshot(false)
	go p.consume()
	return p.frames, nil
}

// Wait blocks until the consumer has drained the stream.
func (p *Pipeline) Wait() { <-p.done }

// Done is closed once processing has finished.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// RunRealtime starts the consumer, transmits reports through sim on the
// caller's goroutine and waits for the consumer to finish. A cancelled ctx
// cuts the transmission short; the reports already delivered are still
// processed and the context error is returned with the events.
func (p *Pipeline) RunRealtime(ctx context.Context, reports []messages.Report, sim *transportSimulator.Simulator) ([]messages.TransitionEvent, error) {
	if sim == nil {
		return nil, errors.New("nil transport simulator")
	}
	p.SetTransportStats(sim.Stats)
	frames, err := p.Start()
	if err != nil {
		return nil, err
	}
	p.logger.Info("real-time processing started", zap.Int("messages", len(reports)))

	txErr := sim.Transmit(ctx, reports, frames)
	p.Wait()

	p.logger.Info("real-time processing finished",
		zap.Int("processed", p.engine.Processed()),
		zap.Int("failed", p.engine.Failed()),
		zap.Int("transitions", len(p.events)),
		zap.Duration("elapsed", time.Since(p.startedAt)))
	return p.events, txErr
}

// SetTransportStats registers the source of transport counters included in
// snapshots.
func (p *Pipeline) SetTransportStats(fn func() messages.TransportStats) {
	p.mu.Lock()
	p.transport = fn
	p.mu.Unlock()
}

// Events returns the transitions in emission order. Only valid after the
// run has finished.
func (p *Pipeline) Events() []messages.TransitionEvent {
	select {
	case <-p.done:
		return p.events
	default:
		return nil
	}
}

// Snapshot returns the latest published view, or nil before the run starts.
func (p *Pipeline) Snapshot() *messages.Snapshot { return p.snap.Load() }

func (p *Pipeline) Engine() *tracker.Engine { return p.engine }

func (p *Pipeline) RunID() string { return p.opts.RunID }

func (p *Pipeline) consume() {
	defer close(p.done)
	for {
		select {
		case f := <-p.frames:
			p.metrics.SetQueueDepth(len(p.frames))
			if f.IsEnd() {
				p.publishSnapshot(true)
				p.logger.Info("end of stream received", zap.Int("processed", p.engine.Processed()))
				return
			}
			if !f.IsReport() {
				continue
			}
			p.handle(f.Report)
		case <-time.After(p.opts.PollTimeout):
			// idle: keep waiting for the marker
			p.publishSnapshot(false)
			if n := p.engine.Processed(); n != p.lastLogged {
				p.logProgress(n)
			}
		}
	}
}

func (p *Pipeline) handle(r messages.Report) {
	if evt := p.engine.Process(r); evt != nil {
		p.events = append(p.events, *evt)
		p.opts.Dispatcher.Dispatch(*evt)
	}
	if n := p.engine.Processed(); n%p.opts.ProgressEvery == 0 {
		p.publishSnapshot(false)
		p.logProgress(n)
	}
}

func (p *Pipeline) logProgress(n int) {
	p.lastLogged = n
	elapsed := time.Since(p.startedAt)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(n) / elapsed.Seconds()
	}
	p.logger.Info("progress",
		zap.Int("processed", n),
		zap.Float64("rate_per_sec", rate),
		zap.Int("active_machines", p.engine.MachineStatistics().ActiveMachines),
		zap.Int("transitions", len(p.events)))
}

func (p *Pipeline) publishSnapshot(done bool) {
	s := &messages.Snapshot{
		RunID:       p.opts.RunID,
		Yards:       p.engine.YardSummaries(),
		Machines:    p.engine.MachineSnapshots(),
		Processed:   p.engine.Processed(),
		Failed:      p.engine.Failed(),
		Transitions: len(p.events),
		Done:        done,
		TakenAt:     time.Now().UTC(),
	}
	p.mu.Lock()
	fn := p.transport
	p.mu.Unlock()
	if fn != nil {
		st := fn()
		s.Transport = &st
	}
	p.snap.Store(s)
}
