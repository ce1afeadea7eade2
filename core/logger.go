package core

// Logger is any service that can log messages at the usual levels.
// Extra args may carry an error, a map of extra context or an account.Account
// depending on the implementation.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Critical(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
