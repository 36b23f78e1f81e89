package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DispatcherLogger writes dispatcher job events through zerolog, tagged with
// component=dispatcher.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger creates a DispatcherLogger writing to logger.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.logger.Info(), msg, keysAndValues)
}

// Warn is used for jobs dropped by a full queue.
func (l *DispatcherLogger) Warn(msg string, keysAndValues ...any) {
	l.write(l.logger.Warn(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.logger.Error(), msg, keysAndValues)
}

// write adds the key/value pairs to ev. An "error" value goes through Err so
// Graylog sees the usual error field; pairs with a non-string key and a
// trailing key without value are skipped.
func (l *DispatcherLogger) write(ev *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch v := keysAndValues[i+1].(type) {
		case error:
			if key == "error" {
				ev = ev.Err(v)
			} else {
				ev = ev.AnErr(key, v)
			}
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
