package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for pipeline requests.
type LogContext struct {
	RequestID string    // HTTP request id from chi middleware
	ClientIP  string    // Client IP address (without port)
	Project   uint      // Project id, when the request addresses a project
	Block     uint      // Block instance id, when the request addresses a block
	Input     string    // Initial input image UUID of the evaluation
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for an incoming request.
func NewLogContext(requestID, clientIP string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithBlock returns a copy with the block instance id set
func (lc *LogContext) WithBlock(block uint) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Block = block
	}
	return clone
}

// WithProject returns a copy with the project id set
func (lc *LogContext) WithProject(project uint) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Project = project
	}
	return clone
}

// WithInput returns a copy with the initial input UUID set
func (lc *LogContext) WithInput(input string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Input = input
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
