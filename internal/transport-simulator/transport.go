package transport_simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

// ====== Tunables ======
const (
	DefaultLossRate            = 0.06
	DefaultCoordinateErrorRate = 0.015
	DefaultMaxDelay            = 2 * time.Second
	DefaultDelayedThreshold    = 800 * time.Millisecond
	DefaultMessageInterval     = time.Second

	// pacing jitter around MessageInterval
	intervalJitter = 0.2

	offsetRange = 8.0
	noiseRange  = 4.0
	scaleMin    = 0.85
	scaleMax    = 1.15
)

// Config describes the simulated link.
type Config struct {
	LossRate            float64
	CoordinateErrorRate float64
	MaxDelay            time.Duration
	DelayedThreshold    time.Duration
	MessageInterval     time.Duration
	Speed               float64 // 1.0 = real time, 10 = ten times faster
}

func DefaultConfig() Config {
	return Config{
		LossRate:            DefaultLossRate,
		CoordinateErrorRate: DefaultCoordinateErrorRate,
		MaxDelay:            DefaultMaxDelay,
		DelayedThreshold:    DefaultDelayedThreshold,
		MessageInterval:     DefaultMessageInterval,
		Speed:               1.0,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.LossRate < 0 || c.LossRate > 1 {
		errs = append(errs, fmt.Errorf("loss rate %v outside [0,1]", c.LossRate))
	}
	if c.CoordinateErrorRate < 0 || c.CoordinateErrorRate > 1 {
		errs = append(errs, fmt.Errorf("coordinate error rate %v outside [0,1]", c.CoordinateErrorRate))
	}
	if c.MaxDelay < 0 || c.MessageInterval < 0 || c.DelayedThreshold < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if !(c.Speed > 0) || math.IsInf(c.Speed, 0) {
		errs = append(errs, fmt.Errorf("speed must be positive, got %v", c.Speed))
	}
	return errors.Join(errs...)
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Simulator forwards reports over a lossy, delaying, corrupting link.
// Counters may be read concurrently with Transmit.
type Simulator struct {
	cfg     Config
	rng     *rand.Rand
	sleep   Sleeper
	logger  *zap.Logger
	metrics *metrics.Metrics

	generated atomic.Int64
	delivered atomic.Int64
	lost      atomic.Int64
	delayed   atomic.Int64
	corrupted atomic.Int64
}

type Option func(*Simulator)

// WithRand injects the random source; every draw of the simulator comes from it.
func WithRand(r *rand.Rand) Option { return func(s *Simulator) { s.rng = r } }

func WithSleeper(fn Sleeper) Option { return func(s *Simulator) { s.sleep = fn } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Simulator) { s.metrics = m } }

func NewSimulator(cfg Config, log *zap.Logger, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transport config: %w", err)
	}
	s := &Simulator{
		cfg:    cfg,
		sleep:  realSleep,
		logger: logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s, nil
}

// Transmit sends reports to out in input order, then a single end-of-stream
// frame. Dropped reports are never sent; nothing is reordered. It runs on the
// caller's goroutine. When ctx is cancelled the remaining reports are
// abandoned, the end-of-stream frame is still sent and ctx.Err() is returned.
func (s *Simulator) Transmit(ctx context.Context, reports []messages.Report, out chan<- messages.Frame) error {
	s.logger.Info("transmission started",
		zap.Int("messages", len(reports)),
		zap.Duration("interval", s.scaled(s.cfg.MessageInterval)),
		zap.Float64("loss_rate", s.cfg.LossRate),
		zap.Float64("coordinate_error_rate", s.cfg.CoordinateErrorRate))

	err := s.transmit(ctx, reports, out)

	// the consumer only stops on this marker, so it is sent even after
	// cancellation
	out <- messages.EndOfStream()

	st := s.Stats()
	s.logger.Info("transmission finished",
		zap.Int64("generated", st.Generated), zap.Int64("lost", st.Lost),
		zap.Int64("delayed", st.Delayed), zap.Int64("corrupted", st.Corrupted))
	return err
}

func (s *Simulator) transmit(ctx context.Context, reports []messages.Report, out chan<- messages.Frame) error {
	for i, r := range reports {
		s.generated.Add(1)

		if s.rng.Float64() < s.cfg.LossRate {
			s.lost.Add(1)
			s.metrics.Transport(true, false, true, false, false)
			s.logger.Debug("report lost in transit", zap.Int("seq", i+1), zap.Int("machine_id", r.MachineID))
			pause := s.uniform(float64(s.cfg.MessageInterval)/2, float64(s.cfg.MessageInterval))
			if err := s.sleep(ctx, s.scaled(time.Duration(pause))); err != nil {
				return err
			}
			continue
		}

		delay := time.Duration(s.uniform(0, float64(s.cfg.MaxDelay)))
		isDelayed := delay > s.cfg.DelayedThreshold
		if isDelayed {
			s.delayed.Add(1)
			s.logger.Debug("report delayed", zap.Int("seq", i+1), zap.Duration("delay", delay))
		}

		isCorrupted := false
		if s.rng.Float64() < s.cfg.CoordinateErrorRate {
			isCorrupted = true
			s.corrupted.Add(1)
			r = s.corrupt(r)
			s.logger.Debug("report coordinates corrupted", zap.Int("seq", i+1),
				zap.Float64("x", r.X), zap.Float64("y", r.Y))
		}

		if err := s.sleep(ctx, s.scaled(delay)); err != nil {
			return err
		}
		select {
		case out <- messages.ReportFrame(r):
		case <-ctx.Done():
			return ctx.Err()
		}
		s.delivered.Add(1)
		s.metrics.Transport(true, true, false, isDelayed, isCorrupted)

		interval := float64(s.cfg.MessageInterval)
		pace := s.uniform(interval*(1-intervalJitter), interval*(1+intervalJitter))
		if err := s.sleep(ctx, s.scaled(time.Duration(pace))); err != nil {
			return err
		}
	}
	return nil
}

// corrupt applies one of the four coordinate error models, chosen uniformly.
func (s *Simulator) corrupt(r messages.Report) messages.Report {
	x, y := r.X, r.Y
	switch s.rng.Intn(4) {
	case 0: // offset
		x += s.uniform(-offsetRange, offsetRange)
		y += s.uniform(-offsetRange, offsetRange)
	case 1: // noise
		x += s.uniform(-noiseRange, noiseRange)
		y += s.uniform(-noiseRange, noiseRange)
	case 2: // swap
		x, y = y, x
	default: // scale
		k := s.uniform(scaleMin, scaleMax)
		x *= k
		y *= k
	}
	r.X, r.Y = round2(x), round2(y)
	return r
}

// Stats returns the cumulative counters and derived rates (percent).
func (s *Simulator) Stats() messages.TransportStats {
	st := messages.TransportStats{
		Generated: s.generated.Load(),
		Delivered: s.delivered.Load(),
		Lost:      s.lost.Load(),
		Delayed:   s.delayed.Load(),
		Corrupted: s.corrupted.Load(),
	}
	if st.Generated > 0 {
		st.DeliveryRate = float64(st.Generated-st.Lost) / float64(st.Generated) * 100
	}
	if st.Delivered > 0 {
		st.ErrorRate = float64(st.Corrupted) / float64(st.Delivered) * 100
	}
	return st
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulator) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) / s.cfg.Speed)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
