package api

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when a response body cannot be decoded or
	// lacks a required field.
	ErrMalformed = errors.New("malformed backend response")

	// ErrNotOK is returned when GET /session answers with ok=false.
	ErrNotOK = errors.New("backend reported session not ok")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}
