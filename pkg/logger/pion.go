package logger

import (
	"fmt"

	"github.com/pion/logging"
)

// PionFactory routes pion's internal scoped loggers into a Logger.
// pion is chatty at info level, so its info lines are demoted to debug.
type PionFactory struct {
	Base *Logger
}

// NewLogger implements logging.LoggerFactory
func (f PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{l: f.Base.Named("pion/" + scope)}
}

var _ logging.LoggerFactory = PionFactory{}

type pionLogger struct {
	l *Logger
}

func (p *pionLogger) Trace(msg string)                          {}
func (p *pionLogger) Tracef(format string, args ...interface{}) {}

func (p *pionLogger) Debug(msg string) { p.l.Debug("%s", msg) }
func (p *pionLogger) Debugf(format string, args ...interface{}) {
	p.l.Debug(format, args...)
}

func (p *pionLogger) Info(msg string) { p.l.Debug("%s", msg) }
func (p *pionLogger) Infof(format string, args ...interface{}) {
	p.l.Debug(format, args...)
}

func (p *pionLogger) Warn(msg string) { p.l.Warn("%s", msg) }
func (p *pionLogger) Warnf(format string, args ...interface{}) {
	p.l.Warn(format, args...)
}

func (p *pionLogger) Error(msg string) { p.l.Error("%s", msg) }
func (p *pionLogger) Errorf(format string, args ...interface{}) {
	p.l.Error("%s", fmt.Sprintf(format, args...))
}
