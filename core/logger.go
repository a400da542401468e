package core

// Logger is any service that can log messages.
// Every method expects a message followed by any of: an error, a map[string]interface{} of extra data, a user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
