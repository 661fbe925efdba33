package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{" DEBUG ", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestCLIMode_WritesSubsystemAndError(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Debug("Session", "hidden")
	Error("Transport", errors.New("boom"), "request to %s failed", "/api/services")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "subsystem=Transport")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "request to /api/services failed")
}

func TestTUIMode_FiltersAndCloses(t *testing.T) {
	ch := InitForTUI(LevelWarn)
	require.NotNil(t, ch)

	Info("Session", "ignored")
	Warn("StatusStream", "reconnecting in %s", "1s")

	entry := <-ch
	assert.Equal(t, LevelWarn, entry.Level)
	assert.Equal(t, "StatusStream", entry.Subsystem)
	assert.Equal(t, "reconnecting in 1s", entry.Message)

	CloseTUIChannel()
	_, ok := <-ch
	assert.False(t, ok)

	InitForCLI(LevelInfo, &bytes.Buffer{})
}
