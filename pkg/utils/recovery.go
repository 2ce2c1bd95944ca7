package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError wraps a panic value as an error
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverAsError recovers from a panic and stores it in *errPtr.
// It must be deferred directly.
//
//	func doWork() (err error) {
//	    defer RecoverAsError(&err)
//	    // ... code that might panic
//	}
func RecoverAsError(errPtr *error) {
	if r := recover(); r != nil {
		stack := string(debug.Stack())
		*errPtr = &PanicError{Value: r, StackTrace: stack}
		slog.Error("Recovered from panic", "panic", r)
	}
}

// RecoverWithCallback recovers from a panic and passes it to callback.
// It must be deferred directly.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		err := &PanicError{Value: r, StackTrace: string(debug.Stack())}
		slog.Error("Recovered from panic", "panic", r)
		if callback != nil {
			callback(err)
		}
	}
}
