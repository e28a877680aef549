// Package obslog wraps log/slog the way the surrounding codebase threads a
// logger through its HostAPI and loader constructors: a functional option
// accepted by every constructor, defaulting to a sane fallback when unset.
package obslog

import (
	"log/slog"
	"os"
)

// Default returns a text-handler slog.Logger writing to stderr, used when
// a caller does not supply WithLogger.
func Default() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// ForPlugin returns a logger pre-bound with a "plugin" attribute, matching
// the field-tagging convention used across the plugin host's log lines.
func ForPlugin(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = Default()
	}
	return base.With(slog.String("plugin", name))
}
