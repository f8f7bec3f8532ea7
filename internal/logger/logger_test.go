package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

func TestRecordFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	Log(TagRoom, "room created", "room", "room1")

	line := strings.TrimRight(buf.String(), "\n")
	matched, err := regexp.MatchString(
		`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[ROOM\] room created room=room1$`, line)
	require.NoError(t, err)
	assert.True(t, matched, "unexpected record format: %q", line)
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("ErrorLevelSuppressesDomainTags", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")

		Log(TagJoin, "join event")
		Log(TagBroadcast, "broadcast event")
		Error("error event")

		out := buf.String()
		assert.NotContains(t, out, "join event")
		assert.NotContains(t, out, "broadcast event")
		assert.Contains(t, out, "error event")
	})

	t.Run("WarningTagFiltersAsWarn", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")

		Info("info event")
		Log(TagWarning, "warning event")

		out := buf.String()
		assert.NotContains(t, out, "info event")
		assert.Contains(t, out, "warning event")
	})

	// restore default for other tests
	SetLevel("INFO")
}

func TestDomainTags(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")

	for _, tag := range []Tag{
		TagClient, TagRoom, TagFile, TagServer,
		TagJoin, TagBroadcast, TagWhisper, TagLeave, TagSendfile,
	} {
		Log(tag, "event")
	}

	out := buf.String()
	for _, want := range []string{
		"[CLIENT]", "[ROOM]", "[FILE]", "[SERVER]",
		"[JOIN]", "[BROADCAST]", "[WHISPER]", "[LEAVE]", "[SENDFILE]",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFileOutputTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0644))

	require.NoError(t, Init(Config{Level: "INFO", Output: path, Truncate: true}))
	Log(TagServer, "server starting")
	Shutdown()
	defer InitWithWriter(os.Stdout, "INFO")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale content")
	assert.Contains(t, string(data), "[SERVER] server starting")
}

func TestShutdownShortCircuits(t *testing.T) {
	buf := new(bytes.Buffer)
	InitWithWriter(buf, "INFO")

	Log(TagServer, "before shutdown")
	Shutdown()
	Log(TagServer, "after shutdown")

	InitWithWriter(os.Stdout, "INFO")

	assert.Contains(t, buf.String(), "before shutdown")
	assert.NotContains(t, buf.String(), "after shutdown")
}
