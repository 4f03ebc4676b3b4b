package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options tune the process logger.
type Options struct {
	Level string
	App   string
	Env   string
	// Text switches to the human readable handler used in development.
	Text bool
}

// New builds the process logger. Unknown levels fall back to info and every
// record carries the app and env attributes when they are set.
func New(opts Options) *slog.Logger {
	return newWithWriter(os.Stdout, opts)
}

func newWithWriter(w io.Writer, opts Options) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(opts.Level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if opts.Text {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	if opts.App != "" {
		logger = logger.With("app", opts.App)
	}
	if opts.Env != "" {
		logger = logger.With("env", opts.Env)
	}
	return logger
}

// Discard returns a logger that drops all output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
