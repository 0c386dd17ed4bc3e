package profiler

import (
	"time"

	"go.uber.org/zap"
)

// ProfilerBuilderOption is a functional option used to configure a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often a report is logged.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.interval = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithLogger sets the logger reports are written to.
func WithLogger(l *zap.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.log = l
	}
}
