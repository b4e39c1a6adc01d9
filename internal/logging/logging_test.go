package logging_test

import (
	"testing"

	"github.com/marshallku/traffic-switcher/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestNewAtLevelDefaultsToInfoOnUnknownValue(t *testing.T) {
	logger := logging.NewAtLevel("not-a-level")
	assert.False(t, logger.Enabled(nil, -4)) // slog.LevelDebug
	assert.True(t, logger.Enabled(nil, 0))   // slog.LevelInfo
}

func TestNewAtLevelDebugEnablesDebug(t *testing.T) {
	logger := logging.NewAtLevel("debug")
	assert.True(t, logger.Enabled(nil, -4))
}

func TestNewReadsEnvLogLevel(t *testing.T) {
	t.Setenv(logging.EnvLogLevel, "error")
	logger := logging.New()
	assert.False(t, logger.Enabled(nil, 0))  // info no longer enabled
	assert.True(t, logger.Enabled(nil, 8)) // slog.LevelError
}
