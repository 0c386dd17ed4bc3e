// Package logger holds the zap logger shared by every engine package. It is silent
// until the host application installs one with SetLogger.
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// L returns the active logger. Never nil.
func L() *zap.Logger {
	return current.Load()
}

// SetLogger installs l as the engine logger. Passing nil restores the no-op logger.
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// Named returns a child of the active logger scoped to a component name.
//
// Parameters:
//   - name: the component name, e.g. "shadow"
//
// Returns:
//   - *zap.Logger: the scoped logger
func Named(name string) *zap.Logger {
	return L().Named(name)
}
