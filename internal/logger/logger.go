// Package logger provides structured logging for the relaychat server.
//
// It is built on log/slog with a custom text handler that renders records as
//
//	[2006-01-02 15:04:05] [TAG] message key=value
//
// which is the exact format of the append-only server.log operators read.
// Besides the usual severities, log records carry operator tags (CLIENT,
// ROOM, JOIN, ...) that identify the subsystem an event belongs to; tags are
// rendered in the level slot of the record.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level represents log severities used for filtering.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Tag identifies the subsystem a log record belongs to. Tags are rendered in
// the level slot of each record and carry an implicit severity for filtering.
type Tag string

const (
	TagInfo      Tag = "INFO"
	TagError     Tag = "ERROR"
	TagWarning   Tag = "WARNING"
	TagDebug     Tag = "DEBUG"
	TagClient    Tag = "CLIENT"
	TagRoom      Tag = "ROOM"
	TagFile      Tag = "FILE"
	TagServer    Tag = "SERVER"
	TagJoin      Tag = "JOIN"
	TagBroadcast Tag = "BROADCAST"
	TagWhisper   Tag = "WHISPER"
	TagLeave     Tag = "LEAVE"
	TagSendfile  Tag = "SENDFILE"
)

// severity maps a tag to the level it is filtered at. Domain tags log at
// info; only the severity tags themselves deviate.
func (t Tag) severity() Level {
	switch t {
	case TagDebug:
		return LevelDebug
	case TagWarning:
		return LevelWarn
	case TagError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds logger configuration.
type Config struct {
	Level    string // DEBUG, INFO, WARN, ERROR
	Output   string // stdout, stderr, or a file path
	Truncate bool   // truncate the output file on open (server.log contract)
}

var (
	currentLevel atomic.Int32
	shuttingDown atomic.Bool

	mu       sync.RWMutex
	output   io.Writer = os.Stdout
	slogger  *slog.Logger
	useColor = true
	closer   io.Closer
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	if f, ok := output.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	reconfigure()
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// reconfigure rebuilds the slog handler from the current output settings.
// Callers must not hold mu.
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()
	slogger = slog.New(NewTagTextHandler(output, useColor))
}

// Init initializes the logger with the given configuration. Output can be
// "stdout", "stderr", or a file path; file output is opened truncate-first
// when cfg.Truncate is set, matching the server.log contract of starting
// fresh on every boot.
func Init(cfg Config) error {
	if cfg.Output != "" {
		mu.Lock()
		var newOutput io.Writer
		var newUseColor bool
		var newCloser io.Closer

		switch strings.ToLower(cfg.Output) {
		case "stdout", "":
			newOutput = os.Stdout
			newUseColor = isTerminal(os.Stdout.Fd())
		case "stderr":
			newOutput = os.Stderr
			newUseColor = isTerminal(os.Stderr.Fd())
		default:
			flags := os.O_CREATE | os.O_WRONLY
			if cfg.Truncate {
				flags |= os.O_TRUNC
			} else {
				flags |= os.O_APPEND
			}
			f, err := os.OpenFile(cfg.Output, flags, 0644)
			if err != nil {
				mu.Unlock()
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			newOutput = f
			newCloser = f
		}

		if closer != nil {
			_ = closer.Close()
		}
		output = newOutput
		useColor = newUseColor
		closer = newCloser
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	shuttingDown.Store(false)
	reconfigure()
	return nil
}

// InitWithWriter initializes the logger with a custom io.Writer.
// This is primarily useful for testing.
func InitWithWriter(w io.Writer, level string) {
	mu.Lock()
	output = w
	useColor = false
	closer = nil
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	shuttingDown.Store(false)
	reconfigure()
}

// SetLevel sets the minimum severity that is written out.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(LevelDebug))
	case "INFO":
		currentLevel.Store(int32(LevelInfo))
	case "WARN", "WARNING":
		currentLevel.Store(int32(LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(LevelError))
	}
}

// Shutdown closes the log sink. Logging after Shutdown is a no-op; the flag
// makes Log safe to call from workers that are still draining while the
// server tears down.
func Shutdown() {
	if !shuttingDown.CompareAndSwap(false, true) {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
		output = io.Discard
	}
}

func getLogger() *slog.Logger {
	mu.RLock()
	l := slogger
	mu.RUnlock()
	return l
}

// Log writes a record under the given tag.
// Usage: Log(TagRoom, "room created", "room", name)
func Log(tag Tag, msg string, args ...any) {
	if shuttingDown.Load() {
		return
	}
	if tag.severity() < Level(currentLevel.Load()) {
		return
	}
	args = append([]any{slog.String(tagKey, string(tag))}, args...)
	getLogger().Info(msg, args...)
}

// Debug logs at debug severity with structured fields.
func Debug(msg string, args ...any) { Log(TagDebug, msg, args...) }

// Info logs at info severity with structured fields.
func Info(msg string, args ...any) { Log(TagInfo, msg, args...) }

// Warn logs at warn severity with structured fields.
func Warn(msg string, args ...any) { Log(TagWarning, msg, args...) }

// Error logs at error severity with structured fields.
func Error(msg string, args ...any) { Log(TagError, msg, args...) }
