// Package apperr defines the error categories the supervision engine
// returns, so the request dispatcher can map them to wire response codes
// without re-deriving intent from error strings.
//
// Validation/NotFound/WrongState map to a client-fault wire code;
// SpawnFailure/IOFailure/Protocol map to a server-fault one, expressed
// as a category-tagged error type that can wrap an underlying error.
package apperr

import "fmt"

// Category classifies why an engine operation failed.
type Category int

const (
	// Validation covers bad selectors, missing required fields, and
	// out-of-range date/interval components.
	Validation Category = iota
	// NotFound covers "no task matches this selector".
	NotFound
	// WrongState covers state-gated operations applied from the wrong
	// status (start an already-running task, stop a non-running one,
	// remove a running one, write to a task without stdin, etc).
	WrongState
	// SpawnFailure covers exec errors: missing binary, permission denied.
	SpawnFailure
	// IOFailure covers cache writes, config reads, transport I/O.
	IOFailure
	// Protocol covers malformed request JSON.
	Protocol
)

// Error is a category-tagged error the dispatcher can classify without
// string matching.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(cat Category, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a Validation-category error.
func Validationf(format string, args ...any) *Error { return newErr(Validation, format, args...) }

// NotFoundf builds a NotFound-category error.
func NotFoundf(format string, args ...any) *Error { return newErr(NotFound, format, args...) }

// WrongStatef builds a WrongState-category error.
func WrongStatef(format string, args ...any) *Error { return newErr(WrongState, format, args...) }

// NewSpawnFailure wraps a process-spawn error.
func NewSpawnFailure(err error, context string) *Error {
	return &Error{Category: SpawnFailure, Message: context, Err: err}
}

// NewIOFailure wraps an I/O error (cache, config, transport).
func NewIOFailure(err error, context string) *Error {
	return &Error{Category: IOFailure, Message: context, Err: err}
}

// Protocolf builds a Protocol-category error (malformed request).
func Protocolf(format string, args ...any) *Error { return newErr(Protocol, format, args...) }

// As extracts an *Error from err if present.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
