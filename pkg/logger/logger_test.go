package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(format Format, level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Options{Output: buf, Level: level, Format: format}), buf
}

func lines(buf *bytes.Buffer) []string {
	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestLogger_JSON(t *testing.T) {
	log, buf := newBufferLogger(FormatJSON, LevelInfo)

	log.Info("attendance saved", StudentID("s1"), Subject("Physics"), Int("total", 40))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "attendance saved", entry.Message)
	assert.Equal(t, "s1", entry.Fields["student_id"])
	assert.Equal(t, "Physics", entry.Fields["subject"])
	assert.EqualValues(t, 40, entry.Fields["total"])
	assert.Empty(t, entry.Caller)

	_, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
	assert.NoError(t, err)
}

func TestLogger_LevelFiltering(t *testing.T) {
	log, buf := newBufferLogger(FormatJSON, LevelWarn)

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	got := lines(buf)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], `"level":"WARN"`)
	assert.Contains(t, got[1], `"level":"ERROR"`)
}

func TestLogger_TextSortsKeys(t *testing.T) {
	log, buf := newBufferLogger(FormatText, LevelDebug)

	log.Debug("stats cached", Subject("Maths"), Branch("CSE"), Batch("2024-2028"))

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, " DEBUG stats cached ")
	assert.True(t, strings.HasSuffix(line, "batch=2024-2028 branch=CSE subject=Maths"), line)
}

func TestLogger_WithFields(t *testing.T) {
	log, buf := newBufferLogger(FormatText, LevelInfo)

	child := log.With(Component("narrator"), Operation("generate"))
	child.Info("call", Operation("retry"))
	log.Info("parent")

	got := lines(buf)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "component=narrator")
	assert.Contains(t, got[0], "operation=retry")
	assert.NotContains(t, got[0], "operation=generate")
	assert.NotContains(t, got[1], "component=")
}

func TestLogger_Caller(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf, Level: LevelInfo, Format: FormatJSON, AddCaller: true})

	log.Info("here")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.True(t, strings.HasPrefix(entry.Caller, "logger_test.go:"), entry.Caller)
}

func TestErrField(t *testing.T) {
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: nil}, Err(nil))
	assert.Equal(t, Field{Key: "latency", Value: "1.5s"}, Latency(1500*time.Millisecond))
	assert.Equal(t, F("band", "critical"), Any("band", "critical"))
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))

	assert.Equal(t, FormatText, ParseFormat("TEXT"))
	assert.Equal(t, FormatJSON, ParseFormat("logfmt"))
}

func TestContext(t *testing.T) {
	log, buf := newBufferLogger(FormatJSON, LevelInfo)

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("from ctx")

	assert.Contains(t, buf.String(), "from ctx")
	assert.NotNil(t, FromContext(context.Background()))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("dropped", Err(errors.New("x")))
	})
}
