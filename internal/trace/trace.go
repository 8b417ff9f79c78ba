// Package trace is the optional debug channel, switched on by setting
// PLANTER_DEBUG in the environment.
package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// EnvVar enables tracing when set to a non-empty value.
const EnvVar = "PLANTER_DEBUG"

var (
	enabled atomic.Bool
	logger  atomic.Pointer[slog.Logger]
)

func init() {
	if os.Getenv(EnvVar) != "" {
		SetOutput(os.Stderr)
	}
}

// Enabled reports whether tracing is on.
func Enabled() bool { return enabled.Load() }

// SetOutput turns tracing on and writes trace lines to w. A nil writer
// turns tracing off.
func SetOutput(w io.Writer) {
	if w == nil {
		enabled.Store(false)
		return
	}
	logger.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
	enabled.Store(true)
}

// Logf writes a formatted trace line. Callers on hot paths should guard the
// call with Enabled to avoid formatting arguments.
func Logf(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.Load().Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
}
