package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, logger.ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, logger.ParseLevel("bogus"))
}

func TestNewLogger_Console(t *testing.T) {
	l, err := logger.NewLogger("debug", "console", "yard-tracker")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logger.OrNop(nil))
}
