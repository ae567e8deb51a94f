package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/config"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func TestInitializeRespectsLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bufferSyncer
	Initialize(config.LoggerConfig{Level: "warn", Format: "console", ServiceName: "test"}, &buf)

	logger := GetLogger()
	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "emitted")
	assert.Contains(t, out, "test.", "service name prefixes console entries")
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bufferSyncer
	Initialize(config.LoggerConfig{Level: "info", ServiceName: "first"}, &first)
	Initialize(config.LoggerConfig{Level: "info", ServiceName: "second"}, &second)

	GetLogger().Info("hello")
	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String(), "second Initialize is a no-op")
}

func TestInitializeBadLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bufferSyncer
	Initialize(config.LoggerConfig{Level: "shouting", ServiceName: "test"}, &buf)

	GetLogger().Debug("below info")
	GetLogger().Info("at info")

	out := buf.String()
	assert.NotContains(t, out, "below info")
	assert.Contains(t, out, "at info")
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "fallback is a development logger")
}

func TestSyncWithoutInitializeIsSafe(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	Sync()
}
