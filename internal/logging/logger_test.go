package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		entries = append(entries, e)
	}
	return entries
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown", map[string]interface{}{"k": 1})
	logger.Error("shown too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, 1.0, entries[0]["k"])
	assert.Contains(t, entries[0]["caller"], "logging/logger_test.go")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(DebugLevel, &buf)
	child := base.WithField("job", "j1").WithError(errors.New("boom"))

	child.Info("done", map[string]interface{}{"evaluations": 3})
	base.Info("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "j1", entries[0]["job"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Equal(t, 3.0, entries[0]["evaluations"])
	assert.NotContains(t, entries[1], "job")
	assert.Same(t, base, base.WithError(nil))
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	logger.format = ConsoleFormat

	logger.Info("tuning finished", map[string]interface{}{"best": 0.5, "a": "x"})
	line := buf.String()
	assert.Contains(t, line, "INFO  tuning finished")
	assert.Contains(t, line, " a=x")
	assert.Contains(t, line, " best=0.5")
	assert.Less(t, strings.Index(line, " a=x"), strings.Index(line, " best=0.5"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("chatty"))
}

func TestNewLoggerConsole(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, ConsoleFormat, logger.format)
	assert.Equal(t, DebugLevel, logger.Level())
}

func TestZapLoggerForwardsFields(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf)).Named("tuner").With(zap.String("job", "j9"))

	zl.Info("New best model",
		zap.Float64("objective", 0.25),
		zap.Int("evaluation", 4),
		zap.Bool("maximize", true),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "tuner", e["logger"])
	assert.Equal(t, "j9", e["job"])
	assert.Equal(t, 0.25, e["objective"])
	assert.Equal(t, 4.0, e["evaluation"])
	assert.Equal(t, true, e["maximize"])
}

func TestZapLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf))
	zl.Debug("dropped")
	assert.Zero(t, buf.Len())
}

func TestMiddlewareStoresRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	var fromCtx *CtxLogger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status/x", nil))

	require.NotNil(t, fromCtx)
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Request completed", entries[0]["message"])
	assert.Equal(t, 418.0, entries[0]["status"])
	assert.Equal(t, "/api/v1/status/x", entries[0]["path"])
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, InfoLevel, l.Level())
}
