// Package logging centralizes structured logging for the runtime.
//
// Every subsystem pulls its *logrus.Entry from Get instead of constructing
// its own logger, so log level and output format stay configurable from one
// place (Configure).
package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.RWMutex
	root   = logrus.New()
	fields = logrus.Fields{}
)

// Configure adjusts the shared logger's level and formatter. Safe to call
// at any time; existing *logrus.Entry values obtained from Get pick up the
// change because they wrap the shared *logrus.Logger, not a snapshot.
func Configure(level logrus.Level, formatter logrus.Formatter) {
	mu.Lock()
	defer mu.Unlock()
	root.SetLevel(level)
	if formatter != nil {
		root.SetFormatter(formatter)
	}
}

// Get returns a logger scoped to subsystem, e.g. "executor" or "cache".
func Get(subsystem string) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return root.WithField("subsystem", subsystem)
}

// WithFields merges extra fields into a subsystem logger.
func WithFields(subsystem string, f logrus.Fields) *logrus.Entry {
	return Get(subsystem).WithFields(f)
}
