package pipeline

import "fmt"

// Error is a pipeline failure carrying an HTTP-style status for the caller.
// Internal detail stays in Err for logging; Message is safe to return.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failf(status int, err error, format string, args ...any) *Error {
	return &Error{
		Status:  status,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
