package token

import (
	"fmt"
)

// ExchangeError is a non-2xx answer from the token endpoint.
type ExchangeError struct {
	StatusCode int
	// Status is the reason phrase, e.g. "Service Unavailable".
	Status string
	// Body is the raw response body.
	Body []byte

	// ErrorCode and ErrorDescription are filled when Body is an RFC 6749 error object.
	ErrorCode        string
	ErrorDescription string
}

func (e *ExchangeError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("token endpoint returned %d %s: %s: %s",
			e.StatusCode, e.Status, e.ErrorCode, e.ErrorDescription)
	}
	return fmt.Sprintf("token endpoint returned %d %s: %s", e.StatusCode, e.Status, string(e.Body))
}

// TransportError is a failure to complete the round-trip or decode its result:
// connection refused, timeouts, unreadable or malformed bodies.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorResponse is the RFC 6749 section 5.2 error payload.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
