package event

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
)

// BreakerSettings configures the circuit breaker around a sink.
type BreakerSettings struct {
	Fails    int           // consecutive failures that open the breaker
	Open     time.Duration // time spent open before a trial request
	Interval time.Duration // closed-state counter reset period
}

func mkCB(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	fails := s.Fails
	if fails < 1 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  s.Open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
}

// BreakerSink short-circuits a failing sink: while open, Publish returns
// gobreaker.ErrOpenState immediately.
type BreakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSink(next Sink, s BreakerSettings) *BreakerSink {
	return &BreakerSink{next: next, cb: mkCB(next.Name(), s)}
}

func (b *BreakerSink) Name() string { return b.next.Name() }

func (b *BreakerSink) Publish(ctx context.Context, evt messages.TransitionEvent) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, evt)
	})
	return err
}

func (b *BreakerSink) State() gobreaker.State { return b.cb.State() }
