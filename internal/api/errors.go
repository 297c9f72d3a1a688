package api

import (
	"errors"
	"fmt"
)

// ErrDecode indicates a malformed response body from the remote service.
var ErrDecode = errors.New("decode response body")

// HTTPError is a non-2xx response without a structured error body.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %d", e.Status)
}

// ServerError carries the message decoded from a structured error body.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}
