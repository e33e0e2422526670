package rabbitmq

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

// IPublisher publishes a payload on a topic.
type IPublisher interface {
	PublishMessage(topic string, payload []byte) error
	Close()
}

// Publisher publishes on a shared MQTT client.
type Publisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublisher(client mqtt.Client, qos byte, log *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		qos:     qos,
		timeout: 5 * time.Second,
		logger:  logger.OrNop(log),
	}
}

// PublishMessage blocks until the broker acknowledges or the timeout hits.
func (p *Publisher) PublishMessage(topic string, payload []byte) error {
	if p.client == nil {
		return fmt.Errorf("publish to %s: no mqtt client", topic)
	}
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	p.logger.Debug("message published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	CloseRabbitMQConn(p.client, p.logger)
}
