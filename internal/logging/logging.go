// Package logging holds the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	EnvLevel  = "CSVFLOW_LOG_LEVEL"
	EnvJSON   = "CSVFLOW_LOG_JSON"
	EnvSource = "CSVFLOW_LOG_SOURCE"
)

type Options struct {
	Level     string
	JSON      bool
	AddSource bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

var current atomic.Pointer[slog.Logger]

func init() { Configure(Options{}) }

func Configure(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level), AddSource: opts.AddSource}
	var h slog.Handler = slog.NewTextHandler(out, ho)
	if opts.JSON {
		h = slog.NewJSONHandler(out, ho)
	}
	current.Store(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func L() *slog.Logger { return current.Load() }

// Component returns L() tagged with component=name. The result is bound to
// the logger current at call time, so resolve it after Configure.
func Component(name string) *slog.Logger { return L().With("component", name) }

// InitFromEnv configures the logger from CSVFLOW_LOG_LEVEL, CSVFLOW_LOG_JSON
// and CSVFLOW_LOG_SOURCE.
func InitFromEnv() {
	Configure(Options{
		Level:     os.Getenv(EnvLevel),
		JSON:      envBool(EnvJSON),
		AddSource: envBool(EnvSource),
	})
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}
