package feed

import "fmt"

// TransportError wraps a failure reported by the underlying socket.
// It never changes the session state by itself; the close that usually
// follows does.
type TransportError struct {
	Op  string // dial, read, write, ping or close
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
