package global

import (
	"context"
)

type ContextKey uint

const (
	CancelKey ContextKey = iota
	VersionKey
	ProcessContextKey
)

func Version(ctx context.Context) string {
	if v, ok := ctx.Value(VersionKey).(string); ok {
		return v
	}
	return "unknown"
}

// Cancel cancels the command context, when one was set up.
func Cancel(ctx context.Context) {
	if cancel, ok := ctx.Value(CancelKey).(context.CancelFunc); ok {
		cancel()
	}
}

// ProcessContext returns the process-wide context for lazy-started background services.
// It is cancelled only when the process terminates, not when a single operation completes.
func ProcessContext(ctx context.Context) context.Context {
	if processCtx, ok := ctx.Value(ProcessContextKey).(context.Context); ok {
		return processCtx
	}
	return ctx
}
