// Package config loads run settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/yard_tracker/pkg/rabbitmq"
)

type Config struct {
	YardsPath    string
	MessagesPath string
	OutputDir    string

	Realtime bool
	Speed    float64

	LossRate            float64
	CoordinateErrorRate float64
	MaxDelay            time.Duration
	MessageInterval     time.Duration
	Seed                int64 // 0: time based

	QueueSize     int
	PollTimeout   time.Duration
	ProgressEvery int

	LogLevel  string
	LogFormat string

	HTTPPort int // 0: disabled
	GRPCPort int // 0: disabled

	MQTTEnabled bool
	Rabbit      rabbitmq.RabbitMQConfig
	TopicFormat string

	InfluxEnabled bool
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string

	CBFails    int
	CBOpen     time.Duration
	CBInterval time.Duration
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envDuration accepts Go durations ("1500ms") or plain seconds ("1.5").
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}

func envMillis(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Millisecond
}

// Load reads the environment; unset or unparsable values fall back to defaults.
func Load() Config {
	return Config{
		YardsPath:    envStr("YARDS_FILE", "data/yards.txt"),
		MessagesPath: envStr("MESSAGES_FILE", "data/machine_messages.json"),
		OutputDir:    envStr("OUTPUT_DIR", "output"),

		Realtime: envBool("REALTIME", false),
		Speed:    envFloat("PROCESSING_SPEED", 1.0),

		LossRate:            envFloat("TRANSPORT_LOSS_RATE", 0.06),
		CoordinateErrorRate: envFloat("TRANSPORT_COORD_ERROR_RATE", 0.015),
		MaxDelay:            envDuration("TRANSPORT_MAX_DELAY", 2*time.Second),
		MessageInterval:     envDuration("TRANSPORT_INTERVAL", time.Second),
		Seed:                envInt64("TRANSPORT_SEED", 0),

		QueueSize:     envInt("QUEUE_SIZE", 1024),
		PollTimeout:   envDuration("POLL_TIMEOUT", time.Second),
		ProgressEvery: envInt("PROGRESS_EVERY", 5),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "console"),

		HTTPPort: envInt("HTTP_PORT", 0),
		GRPCPort: envInt("GRPC_PORT", 0),

		MQTTEnabled: envBool("MQTT_ENABLED", false),
		Rabbit: rabbitmq.RabbitMQConfig{
			Host:     envStr("RABBITMQ_HOST", "localhost"),
			Port:     envInt("RABBITMQ_PORT", 1883),
			User:     envStr("RABBITMQ_USER", "guest"),
			Password: envStr("RABBITMQ_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "yard-tracker"),
		},
		TopicFormat: envStr("MQTT_TOPIC_FORMAT", "event/yardStatus/%d"),

		InfluxEnabled: envBool("INFLUX_ENABLED", false),
		InfluxURL:     envStr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:   os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:     envStr("INFLUX_ORG", "yards"),
		InfluxBucket:  envStr("INFLUX_BUCKET", "events"),

		CBFails:    envInt("CB_FAILS", 3),
		CBOpen:     envMillis("CB_OPEN_MS", 10000),
		CBInterval: envMillis("CB_INTERVAL_MS", 60000),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if !(c.Speed > 0) {
		errs = append(errs, fmt.Errorf("PROCESSING_SPEED must be positive, got %v", c.Speed))
	}
	if c.LossRate < 0 || c.LossRate > 1 {
		errs = append(errs, fmt.Errorf("TRANSPORT_LOSS_RATE must be in [0,1], got %v", c.LossRate))
	}
	if c.CoordinateErrorRate < 0 || c.CoordinateErrorRate > 1 {
		errs = append(errs, fmt.Errorf("TRANSPORT_COORD_ERROR_RATE must be in [0,1], got %v", c.CoordinateErrorRate))
	}
	if c.MaxDelay < 0 || c.MessageInterval < 0 {
		errs = append(errs, errors.New("transport durations must not be negative"))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("QUEUE_SIZE must not be negative, got %d", c.QueueSize))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("POLL_TIMEOUT must be positive, got %s", c.PollTimeout))
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 || c.GRPCPort < 0 || c.GRPCPort > 65535 {
		errs = append(errs, errors.New("ports must be in [0,65535]"))
	}
	if c.YardsPath == "" || c.MessagesPath == "" {
		errs = append(errs, errors.New("input file paths must be set"))
	}
	return errors.Join(errs...)
}
