package app

import "context"

// Storage is the key/value port the task store and preferences persist through.
// Implementations return ok=false for keys that were never written.
type Storage interface {
	GetItem(context.Context, string) (string, bool, error)
	SetItem(context.Context, string, string) error
	RemoveItem(context.Context, string) error
}

// Logger receives observational events from the application layer.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// nopLogger discards every event.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
