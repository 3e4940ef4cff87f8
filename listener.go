package resilience

import (
	"time"

	"github.com/kbukum/resilience/logger"
)

// LoggingListener logs breaker notifications through the logger package.
// Transitions log at warn, call outcomes at debug.
type LoggingListener struct {
	log *logger.Logger
}

// NewLoggingListener creates a listener logging under the given component
// name. An empty name uses "resilience".
func NewLoggingListener(component string) *LoggingListener {
	if component == "" {
		component = "resilience"
	}
	return &LoggingListener{log: logger.Get(component)}
}

// OnStateChange implements Listener.
func (l *LoggingListener) OnStateChange(change StateChange) {
	l.log.Warn("circuit breaker state changed", logger.Fields(
		"event_id", change.ID,
		"name", change.Name,
		"from", change.From.String(),
		"to", change.To.String(),
	))
}

// OnSuccess implements Listener.
func (l *LoggingListener) OnSuccess(name string, duration time.Duration) {
	l.log.Debug("call succeeded", logger.Fields(
		"name", name,
		logger.FieldDuration, duration.Milliseconds(),
	))
}

// OnFailure implements Listener.
func (l *LoggingListener) OnFailure(name string, duration time.Duration, err error) {
	l.log.Debug("call failed", logger.Fields(
		"name", name,
		logger.FieldDuration, duration.Milliseconds(),
		logger.FieldError, err.Error(),
	))
}
