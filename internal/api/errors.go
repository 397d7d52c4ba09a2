// Package api provides error types for dashboard backend responses.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
)

var (
	// ErrUnauthorized indicates a missing, expired or rejected token (HTTP 401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the addressed client, file or folder does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedResponse indicates a 2xx response whose body failed decoding or validation.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidRequest indicates a request rejected locally before it was sent.
	ErrInvalidRequest = errors.New("invalid request")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s failed: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps well-known status codes onto the sentinels so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case nethttp.StatusUnauthorized, nethttp.StatusForbidden:
		return ErrUnauthorized
	case nethttp.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// newStatusError builds a StatusError, extracting {"message": ...} from the body when present.
func newStatusError(method, path string, status int, body []byte) *StatusError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
	}
	return &StatusError{Method: method, Path: path, StatusCode: status, Message: msg}
}

func malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, what, err)
}
