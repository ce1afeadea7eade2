package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/jkimani/karo/core"
	"github.com/jkimani/karo/core/account"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare reshapes args for rollbar.
// expected fmt: msg | error, map[string]interface{}, account.Account
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var acctSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in Account
		if acct, ok := arg.(account.Account); ok {
			if !acctSet { // only set one Account
				rollbar.SetPerson(acct.ID, acct.Name, acct.Email)
				acctSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !acctSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) logToStd(level, msg string, args []interface{}) {
	stdArgs := append([]interface{}{level, msg}, args...)
	l.std.Println(stdArgs...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.logToStd("DEBUG:", msg, args)
	rollbar.Debug(l.prepare(msg, args)...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.logToStd("INFO:", msg, args)
	rollbar.Info(l.prepare(msg, args)...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.logToStd("WARN:", msg, args)
	rollbar.Warning(l.prepare(msg, args)...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.logToStd("ERROR:", msg, args)
	rollbar.Error(l.prepare(msg, args)...)
}

func (l RollbarLogger) Critical(msg string, args ...interface{}) {
	l.logToStd("CRITICAL:", msg, args)
	rollbar.Critical(l.prepare(msg, args)...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.logToStd("FATAL:", msg, args)
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.std.Fatal(msg)
}
