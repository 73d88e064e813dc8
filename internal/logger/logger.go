// Package logger dispatches structured log calls to the configured backends.
// Calls made before Init are dropped, which keeps library packages usable in
// tests without any logging setup.
package logger

// Instance is a logging backend.
type Instance interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger holds the backends a call is fanned out to.
type Logger struct {
	instances []Instance
}

var singleton *Logger

// Init installs the given backends, replacing any previous ones.
func Init(instances ...Instance) {
	singleton = &Logger{instances: instances}
}

// Reset removes all backends.
func Reset() {
	singleton = nil
}

func each(fn func(Instance)) {
	if singleton == nil {
		return
	}
	for _, instance := range singleton.instances {
		fn(instance)
	}
}

// Debug logs at DEBUG level.
func Debug(message string, keyvals ...any) {
	each(func(i Instance) { i.Debug(message, keyvals...) })
}

// Info logs at INFO level.
func Info(message string, keyvals ...any) {
	each(func(i Instance) { i.Info(message, keyvals...) })
}

// Warn logs at WARN level.
func Warn(message string, keyvals ...any) {
	each(func(i Instance) { i.Warn(message, keyvals...) })
}

// Error logs at ERROR level.
func Error(message string, keyvals ...any) {
	each(func(i Instance) { i.Error(message, keyvals...) })
}

// Fatal logs at FATAL level; backends are expected to terminate the process.
func Fatal(message string, keyvals ...any) {
	each(func(i Instance) { i.Fatal(message, keyvals...) })
}
