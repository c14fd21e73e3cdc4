package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestHandlerFanOut(t *testing.T) {
	var console, file bytes.Buffer
	log := slog.New(NewHandler(&console, false, &file, slog.LevelInfo))

	log.Info("Push-copy", "path", "/sdcard/a.jpg")
	log.Debug("hidden")

	assert.Contains(t, console.String(), "Push-copy")
	assert.Contains(t, console.String(), "/sdcard/a.jpg")
	assert.Contains(t, file.String(), "msg=Push-copy")
	assert.Contains(t, file.String(), "path=/sdcard/a.jpg")
	assert.NotContains(t, file.String(), "hidden")
	assert.NotContains(t, console.String(), "hidden")
}

func TestConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	h := NewHandler(&console, false, nil, slog.LevelWarn)
	_, isMulti := h.(*MultiHandler)
	assert.False(t, isMulti)

	log := slog.New(h).With("job", "1")
	log.Warn("No files seen. User error?")
	assert.Contains(t, console.String(), "No files seen. User error?")
	assert.Contains(t, console.String(), "job=1")
}
