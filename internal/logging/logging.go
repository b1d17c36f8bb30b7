// Package logging builds the process-wide slog.Logger from the [logging]
// config section and CLI verbosity flags. Output goes to stderr, and also to
// a rotated log file when one is configured.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/natefinch/lumberjack"
)

// Supported log formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

const (
	logDirPerms  = 0o700
	maxLogSizeMB = 50
)

// Options describes how to build a logger. Zero values mean info level,
// auto format, stderr only.
type Options struct {
	Level         string
	Format        string
	File          string
	RetentionDays int

	// Verbose and Quiet come from -v / -q and override Level.
	Verbose bool
	Quiet   bool

	// Stderr defaults to os.Stderr. Tests swap it for a buffer.
	Stderr io.Writer
}

// ParseLevel maps a config level name to a slog.Level. Unknown names map to
// info; config validation already rejects them.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger and a closer for the log file, if any. The closer is
// never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)

	if opts.Verbose {
		level = slog.LevelDebug
	}

	if opts.Quiet {
		level = slog.LevelError
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: level}
	handler := newHandler(stderr, resolveFormat(opts.Format, stderr), hopts)

	if opts.File == "" {
		return slog.New(handler), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), logDirPerms); err != nil {
		return nil, nil, fmt.Errorf("logging: creating log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename: opts.File,
		MaxSize:  maxLogSizeMB,
		MaxAge:   opts.RetentionDays,
		Compress: true,
	}

	// Files always get JSON so they stay machine-readable whatever the
	// terminal shows.
	fileHandler := slog.NewJSONHandler(lj, hopts)

	both, err := Fanout(handler, fileHandler)
	if err != nil {
		return nil, nil, err
	}

	return slog.New(both), lj, nil
}

// resolveFormat turns "auto" into text on a terminal and JSON otherwise.
func resolveFormat(format string, w io.Writer) string {
	switch format {
	case FormatText, FormatJSON:
		return format
	}

	if f, ok := w.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			return FormatText
		}

		return FormatJSON
	}

	return FormatText
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SanitizeToken masks all but the last four characters of a secret so it
// can appear in diagnostics.
func SanitizeToken(tok string) string {
	const visible = 4

	if tok == "" {
		return ""
	}

	if len(tok) <= visible*2 {
		return "****"
	}

	return "****" + tok[len(tok)-visible:]
}

// ErrNoHandlers is returned by Fanout when called with nothing to fan out to.
var ErrNoHandlers = errors.New("logging: no handlers")

// Fanout returns a handler that writes every record to all of hs.
func Fanout(hs ...slog.Handler) (slog.Handler, error) {
	if len(hs) == 0 {
		return nil, ErrNoHandlers
	}

	return fanout(hs), nil
}
