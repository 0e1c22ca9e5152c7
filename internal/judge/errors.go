package judge

import (
	"errors"
	"fmt"
)

// TransportError covers network, timeout and rate-limit failures of the judge
// call. Always retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("judge transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError covers responses that cannot be parsed into the expected shape:
// missing label, label outside the taxonomy, corrupted text. Retryable up to
// the ceiling on the theory that resampling may yield a well-formed response.
type SchemaError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("judge response schema: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("judge response schema: %s", e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Retryable reports whether the error is worth another attempt. Every failure
// category the judge produces is transient in this domain, so only a nil error
// is final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	var se *SchemaError
	return errors.As(err, &te) || errors.As(err, &se)
}
