package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/rabbitmq"
)

// DefaultTopicTemplate is formatted with the yard id.
const DefaultTopicTemplate = "event/yardStatus/%d"

// Sink receives every band transition the engine emits.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt messages.TransitionEvent) error
}

// MQTTSink publishes transitions as JSON, one topic per yard.
type MQTTSink struct {
	publisher     rabbitmq.IPublisher
	topicTemplate string
}

func NewMQTTSink(p rabbitmq.IPublisher, topicTemplate string) *MQTTSink {
	if topicTemplate == "" {
		topicTemplate = DefaultTopicTemplate
	}
	return &MQTTSink{publisher: p, topicTemplate: topicTemplate}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(_ context.Context, evt messages.TransitionEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	return s.publisher.PublishMessage(fmt.Sprintf(s.topicTemplate, evt.YardID), payload)
}

// Dispatcher fans transitions out to sinks on its own goroutine so that a
// slow sink never blocks the consumer. Events are dropped (and counted) when
// the buffer is full.
type Dispatcher struct {
	sinks   []Sink
	ch      chan messages.TransitionEvent
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDispatcher(sinks []Sink, buffer int, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		sinks:   sinks,
		ch:      make(chan messages.TransitionEvent, buffer),
		logger:  logger.OrNop(log),
		metrics: m,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues evt without blocking.
func (d *Dispatcher) Dispatch(evt messages.TransitionEvent) {
	if d == nil || len(d.sinks) == 0 {
		return
	}
	select {
	case d.ch <- evt:
	default:
		d.metrics.SinkError("dispatch_overflow")
		d.logger.Warn("transition dropped, sink buffer full", zap.Int("yard_id", evt.YardID))
	}
}

// Close stops accepting events and waits until queued ones are published.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() { close(d.ch) })
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	ctx := context.Background()
	for evt := range d.ch {
		for _, s := range d.sinks {
			if err := s.Publish(ctx, evt); err != nil {
				d.metrics.SinkError(s.Name())
				d.logger.Warn("sink publish failed",
					zap.String("sink", s.Name()), zap.Int("yard_id", evt.YardID), zap.Error(err))
			}
		}
	}
}
