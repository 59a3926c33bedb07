package pianista

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyJobID is returned by StartPolling when no job id is given.
	ErrEmptyJobID = errors.New("job id cannot be empty")

	// ErrPollingDisabled is returned by StartPolling when the poller was
	// built with WithEnabled(false).
	ErrPollingDisabled = errors.New("polling is disabled")

	// ErrTimeout is matched by [TimeoutError] via errors.Is.
	ErrTimeout = errors.New("job polling timed out")

	// ErrNotFound is wrapped by the [StatusError] returned for HTTP 404.
	ErrNotFound = errors.New("job not found")

	// ErrTransientExhausted is wrapped by the [StatusError] returned once
	// the transient server error allowance of a session is used up.
	ErrTransientExhausted = errors.New("transient server errors exhausted")
)

// TimeoutError reports that a job was still pending when the attempt
// ceiling was reached. The job may still be running server-side.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job polling timed out after %d attempts; the job may still be processing on the server", e.Attempts)
}

// Is makes errors.Is(err, ErrTimeout) true.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// StatusError reports a terminal response status.
type StatusError struct {
	// Code is the HTTP status code of the response.
	Code int

	// Detail is the server-provided message, if any.
	Detail string

	// Err is an optional sentinel (ErrNotFound, ErrTransientExhausted).
	Err error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("unexpected status code: %d", e.Code)
	switch {
	case errors.Is(e.Err, ErrTransientExhausted):
		msg = fmt.Sprintf("server error %d persisted after retries", e.Code)
	case errors.Is(e.Err, ErrNotFound):
		msg = "job not found"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// detailFromBody extracts a "detail" or "message" string from a JSON body.
func detailFromBody(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	var detail string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) == nil && detail != "" {
		return detail
	}
	return body.Message
}

// statusText returns a short label for logs.
func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "unknown"
}
