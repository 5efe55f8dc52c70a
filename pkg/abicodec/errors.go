package abicodec

import "fmt"

// EncodingError reports a value that could not be converted to or from its
// ABI representation. Callers surface it inline next to the offending input.
type EncodingError struct {
	Op    string // "encode" or "decode"
	Index int    // parameter position, -1 when not tied to one
	Type  string
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("abi %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("abi %s: param %d (%s): %v", e.Op, e.Index, e.Type, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func encodeErr(index int, typ string, err error) *EncodingError {
	return &EncodingError{Op: "encode", Index: index, Type: typ, Err: err}
}

func decodeErr(index int, typ string, err error) *EncodingError {
	return &EncodingError{Op: "decode", Index: index, Type: typ, Err: err}
}
