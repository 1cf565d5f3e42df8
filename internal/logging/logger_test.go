package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewTestLogger(&buf, "warn")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := NewTestLogger(&buf, "info")
	logger.WithField("stage", "validate").Info("query accepted")

	var entry LogEntry

	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "query accepted", entry.Message)
	assert.Equal(t, "validate", entry.Fields["stage"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer

	parent := NewTestLogger(&buf, "info")
	child := parent.WithFields(map[string]interface{}{"a": 1, "b": 2})

	assert.Empty(t, parent.fields)
	assert.Len(t, child.fields, 2)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer

	logger := NewTestLogger(&buf, "info")
	logger.WithError(errors.New("boom")).Error("stage failed")

	assert.Contains(t, buf.String(), "boom")
}

func TestWithErrorNil(t *testing.T) {
	logger := NewTestLogger(&bytes.Buffer{}, "info")
	assert.Same(t, logger, logger.WithError(nil))
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := &Logger{
		level:  InfoLevel,
		format: "text",
		output: &buf,
		mu:     &sync.Mutex{},
		fields: map[string]interface{}{},
	}

	logger.Infof("processed %d tables", 3)

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "processed 3 tables")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, InfoLevel, parseLogLevel("bogus"))
}
