package gurbani

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload marks a 2xx response whose body was not the expected
// JSON array of lines.
var ErrMalformedPayload = errors.New("malformed response payload")

// ProviderError is returned for any failed call to the search server:
// transport errors, non-2xx statuses and undecodable bodies.
type ProviderError struct {
	Op         string // "search" or "get shabad"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err came from the search server client.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
