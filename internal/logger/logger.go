// Package logger builds the zerolog loggers used by the backend and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const permission = 0o644

// Build collects logger options before Make.
type Build struct {
	writer  io.Writer
	path    string
	level   zerolog.Level
	fields  map[string]string
	console bool
}

// Log is a built logger and the file it writes to, if any.
type Log struct {
	Logger  zerolog.Logger
	LogFile *os.File
}

// New starts a logger build writing to stderr at info level.
func New() *Build {
	return &Build{writer: os.Stderr, level: zerolog.InfoLevel}
}

// FromWriter sends output to w instead of stderr.
func (b *Build) FromWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

// FromPath appends output to the file at path, creating parent directories.
// It takes precedence over FromWriter.
func (b *Build) FromPath(path string) *Build {
	b.path = path
	return b
}

// WithLevel sets the minimum level by name (debug, info, warn, error,
// disabled). An empty name keeps the current level.
func (b *Build) WithLevel(name string) *Build {
	if name == "" {
		return b
	}
	if lvl, err := zerolog.ParseLevel(name); err == nil {
		b.level = lvl
	}
	return b
}

// With attaches a constant string field to every event.
func (b *Build) With(key, value string) *Build {
	if b.fields == nil {
		b.fields = make(map[string]string)
	}
	b.fields[key] = value
	return b
}

// WithConsole switches to zerolog's human-readable console format when the
// destination is a terminal. Files and other writers keep JSON lines.
func (b *Build) WithConsole() *Build {
	b.console = true
	return b
}

// Make opens the destination and returns the logger.
func (b *Build) Make() (*Log, error) {
	out := &Log{}
	w := b.writer
	if b.path != "" {
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out.LogFile = f
		w = zerolog.SyncWriter(f)
	} else if b.console && isTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	ctx := zerolog.New(w).Level(b.level).With().Timestamp()
	for k, v := range b.fields {
		ctx = ctx.Str(k, v)
	}
	out.Logger = ctx.Logger()
	return out, nil
}

// Close closes the log file, if one was opened.
func (l *Log) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
