package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// FieldLogger logs alternating key/value pairs through zerolog. It satisfies
// orchestrator.Logger.
type FieldLogger struct {
	logger zerolog.Logger
}

// NewFieldLogger wraps logger
func NewFieldLogger(logger zerolog.Logger) *FieldLogger {
	return &FieldLogger{logger: logger}
}

func (f *FieldLogger) Info(msg string, fields ...interface{}) {
	withFields(f.logger.Info(), fields).Msg(msg)
}

func (f *FieldLogger) Error(msg string, err error, fields ...interface{}) {
	withFields(f.logger.Error().Err(err), fields).Msg(msg)
}

func (f *FieldLogger) Debug(msg string, fields ...interface{}) {
	withFields(f.logger.Debug(), fields).Msg(msg)
}

// withFields attaches pairs to the event. A trailing key without a value is
// logged under "extra"; non-string keys are formatted with %v.
func withFields(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			e = e.Interface("extra", fields[i])
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		e = e.Interface(key, fields[i+1])
	}
	return e
}
