package logger

import (
	"io"
	"log/slog"
)

// Option adjusts the slog logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug; the default level is Info.
func WithDebug(debug bool) Option {
	return func(cfg *config) {
		if debug {
			cfg.level = slog.LevelDebug
		} else {
			cfg.level = slog.LevelInfo
		}
	}
}

// WithPretty selects the charmbracelet/log handler for colorized terminal
// output, used when the client.pretty config key is on.
func WithPretty(pretty bool) Option {
	return func(cfg *config) {
		cfg.pretty = pretty
	}
}

// WithJSON selects slog's JSON handler. The chat command uses this for its
// session log file.
func WithJSON(json bool) Option {
	return func(cfg *config) {
		cfg.json = json
	}
}

// WithWriter directs output to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(cfg *config) {
		cfg.writers = []io.Writer{w}
	}
}

// WithWriters directs output to several writers at once.
func WithWriters(w ...io.Writer) Option {
	return func(cfg *config) {
		cfg.writers = w
	}
}

// WithSource annotates records with the caller's file:line.
func WithSource(source bool) Option {
	return func(cfg *config) {
		cfg.source = source
	}
}
