package httpx

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// NetworkError means no response was received at all: DNS failure, connection
// refused, reset, or an aborted call. These are the transient failures the
// offline queue exists for.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError means the per-call deadline elapsed before a response arrived.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// HTTPError means the server responded with a non-2xx status. Body holds the
// raw response body so callers can surface server-provided messages verbatim.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("http %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Message extracts the server-provided error message from common JSON error
// shapes ({"message": ...}, {"error": ...}, {"msg": ...}). Falls back to the
// raw body for non-JSON responses.
func (e *HTTPError) Message() string {
	if len(e.Body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Msg != "":
			return payload.Msg
		}
	}
	return string(e.Body)
}

// SessionInvalidatedError means the backend rejected the session even after a
// silent token refresh. The session is gone; the user must authenticate again.
type SessionInvalidatedError struct {
	Err error
}

func (e *SessionInvalidatedError) Error() string {
	return fmt.Sprintf("session invalidated: %v", e.Err)
}
func (e *SessionInvalidatedError) Unwrap() error { return e.Err }

// IsSessionInvalidated reports whether err carries a *SessionInvalidatedError
// anywhere in its chain.
func IsSessionInvalidated(err error) bool {
	var sie *SessionInvalidatedError
	return errors.As(err, &sie)
}

// IsOffline reports whether err belongs to the queue-eligible class:
// a network failure or a timeout, i.e. the request may have never reached
// the server and is worth replaying once connectivity returns.
//
// An invalidated session may wrap a refresh failure that was itself a
// network error; the session class wins, so such errors are not offline.
func IsOffline(err error) bool {
	if IsSessionInvalidated(err) {
		return false
	}
	var ne *NetworkError
	var te *TimeoutError
	return errors.As(err, &ne) || errors.As(err, &te)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// *HTTPError.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
