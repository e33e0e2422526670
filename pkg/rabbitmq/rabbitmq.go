package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

// RabbitMQConfig addresses the broker's MQTT plugin.
type RabbitMQConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	ClientID   string
	MaxRetries int           // connect attempts, default 5
	MaxElapsed time.Duration // retry budget, default 10s
}

func (c *RabbitMQConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// NewRabbitMQConn connects with exponential backoff. The connection is
// closed when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQConfig, log *zap.Logger) (mqtt.Client, error) {
	log = logger.OrNop(log)
	connAddr := cfg.BrokerURL()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.String("broker", connAddr), zap.Error(err))
	})

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warn("failed to connect to mqtt broker", zap.String("broker", connAddr), zap.Error(token.Error()))
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Info("connected to mqtt broker", zap.String("broker", connAddr))

	go func() {
		<-ctx.Done()
		CloseRabbitMQConn(client, log)
	}()

	return client, nil
}

func CloseRabbitMQConn(client mqtt.Client, log *zap.Logger) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		logger.OrNop(log).Info("mqtt connection closed")
	}
}
