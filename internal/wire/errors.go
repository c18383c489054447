package wire

import "fmt"

const maxSnippet = 256

// DecodeError reports an inbound frame that could not be turned into a Message.
type DecodeError struct {
	Raw []byte
	Err error
}

func newDecodeError(raw []byte, err error) *DecodeError {
	n := len(raw)
	if n > maxSnippet {
		n = maxSnippet
	}
	snippet := make([]byte, n)
	copy(snippet, raw)
	return &DecodeError{Raw: snippet, Err: err}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
