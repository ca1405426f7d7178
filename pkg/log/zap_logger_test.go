package log_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/appchain-go/pkg/log"
)

// captureSyncer keeps every entry written by a ZapLogger.
type captureSyncer struct {
	mu      sync.Mutex
	entries [][]byte
}

func (c *captureSyncer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, append([]byte(nil), p...))
	return len(p), nil
}

func (c *captureSyncer) Sync() error { return nil }

func (c *captureSyncer) last(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.entries)

	entry := make(map[string]any)
	require.NoError(t, json.Unmarshal(c.entries[len(c.entries)-1], &entry))
	return entry
}

func (c *captureSyncer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestZapLogger(t *testing.T) {
	sink := &captureSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug, Output: "stdout"}, sink).
		WithName("rpc")

	levels := map[log.Level]func(string, ...any){
		log.LevelDebug: logger.Debug,
		log.LevelInfo:  logger.Info,
		log.LevelWarn:  logger.Warn,
		log.LevelError: logger.Error,
	}
	for level, logFn := range levels {
		logFn("batch sent", "size", 3)

		entry := sink.last(t)
		assert.Equal(t, string(level), entry["level"])
		assert.Equal(t, "rpc", entry["logger"])
		assert.Equal(t, "batch sent", entry["msg"])
		assert.EqualValues(t, 3, entry["size"])
		assert.True(t, strings.Contains(entry["caller"].(string), "log/zap_logger_test.go:"), entry["caller"])
	}

	child := logger.WithName("dispatcher").WithKV("policy", "batch")
	assert.Equal(t, "rpc.dispatcher", child.Name())
	assert.Equal(t, []any{"policy", "batch"}, child.GetAllKV())
	assert.Empty(t, logger.GetAllKV())

	child.Info("flushed")
	entry := sink.last(t)
	assert.Equal(t, "rpc.dispatcher", entry["logger"])
	assert.Equal(t, "batch", entry["policy"])

	helper := func(msg string) { child.AddCallerSkip(1).Warn(msg) }
	helper("from helper")
	entry = sink.last(t)
	assert.True(t, strings.Contains(entry["caller"].(string), "log/zap_logger_test.go:"), entry["caller"])
}

func TestZapLoggerLevelFilter(t *testing.T) {
	sink := &captureSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelWarn, Output: "stdout"}, sink)

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Zero(t, sink.count())

	logger.Warn("shown")
	assert.Equal(t, 1, sink.count())
}

func TestNoopLogger(t *testing.T) {
	lg := log.NewNoopLogger()
	assert.Equal(t, "noop", lg.Name())
	assert.Empty(t, lg.GetAllKV())
	assert.Equal(t, lg, lg.WithKV("k", "v").WithName("x").AddCallerSkip(1))
	lg.Error("ignored", "k", "v")
}
