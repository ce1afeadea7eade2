package logsvc

import (
	"log"

	"github.com/jkimani/karo/core"
)

// StdLogger wraps the standard library logger. Used in DEV/TEST mode where
// errors should not be reported to rollbar.
type StdLogger struct {
	std     *log.Logger
	enabled bool
}

var _ core.Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	return &StdLogger{std: std, enabled: true}
}

func (l *StdLogger) Enable(enabled bool) { l.enabled = enabled }

func (l *StdLogger) logf(level, msg string, args []interface{}) {
	if !l.enabled {
		return
	}
	stdArgs := append([]interface{}{level, msg}, args...)
	l.std.Println(stdArgs...)
}

func (l *StdLogger) Debug(msg string, args ...interface{})    { l.logf("DEBUG:", msg, args) }
func (l *StdLogger) Info(msg string, args ...interface{})     { l.logf("INFO:", msg, args) }
func (l *StdLogger) Warn(msg string, args ...interface{})     { l.logf("WARN:", msg, args) }
func (l *StdLogger) Error(msg string, args ...interface{})    { l.logf("ERROR:", msg, args) }
func (l *StdLogger) Critical(msg string, args ...interface{}) { l.logf("CRITICAL:", msg, args) }
func (l *StdLogger) Fatal(msg string, args ...interface{}) {
	l.std.Fatal(append([]interface{}{"FATAL:", msg}, args...)...)
}
