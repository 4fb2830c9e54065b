package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestTaskLogger_ContextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf}).
		WithComponent("runner").
		WithTask("t1")

	l.Debug("hidden")
	l.Info("runner.turn.start", "turn", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "runner.turn.start", entry["msg"])
	assert.Equal(t, "runner", entry["component"])
	assert.Equal(t, "t1", entry["task_id"])
	assert.EqualValues(t, 2, entry["turn"])
}

func TestTaskLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})

	l.LogDispatch("tool", "score_lead", "inv-1", time.Millisecond, nil)
	l.LogRemoteCall("market_oracle", 3, time.Second, errors.New("unreachable"))
	l.LogCompaction("compacted", 9, 8, nil)
	l.LogCompaction("conflict", 0, 0, errors.New("outstanding"))

	out := buf.String()
	assert.Contains(t, out, "runner.dispatch.completed")
	assert.Contains(t, out, "a2a.call.failed")
	assert.Contains(t, out, "attempts=3")
	assert.Contains(t, out, "session.compaction")
	assert.Contains(t, out, "session.compaction.conflict")
	assert.Contains(t, out, "reason=outstanding")
}

func TestTaskLogger_WithContextDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Format: "text", Output: &buf})
	_ = base.WithContext("peer", "x")
	base.Info("plain")
	assert.NotContains(t, buf.String(), "peer=x")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Info("nothing", "k", "v")
}
