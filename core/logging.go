package core

// Logger is implemented by services that can report application events.
// Implementations may inspect args for known types (eg. the acting user)
// and attach them to the report.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
