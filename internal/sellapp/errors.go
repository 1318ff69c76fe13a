package sellapp

import "fmt"

// TransportError means the processor could not be reached or did not answer
// within the timeout. It is never retried.
type TransportError struct {
	Method string
	Route  string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sellapp %s %s: %v", e.Method, e.Route, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
