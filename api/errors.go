package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingField is returned before any request when a required input is empty.
var ErrMissingField = errors.New("required field is empty")

// ValidationIssue is one entry of a 422 response's detail list.
type ValidationIssue struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type,omitempty"`
}

// Path joins the location segments with dots, e.g. "body.domain".
func (v ValidationIssue) Path() string {
	parts := make([]string, len(v.Loc))
	for i, seg := range v.Loc {
		switch s := seg.(type) {
		case string:
			parts[i] = s
		case float64:
			parts[i] = fmt.Sprintf("%g", s)
		default:
			parts[i] = fmt.Sprint(s)
		}
	}
	return strings.Join(parts, ".")
}

// APIError is returned for any response whose status is not 200 or 201
// on an endpoint that expects an immediate result.
type APIError struct {
	StatusCode int

	// Detail is the server's detail (or message) string, if it sent one.
	Detail string

	// Validation holds the structured detail list of a 422 response.
	Validation []ValidationIssue
}

func newAPIError(code int, body []byte) *APIError {
	e := &APIError{StatusCode: code}
	if len(body) == 0 {
		return e
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return e
	}

	if len(payload.Detail) > 0 {
		var s string
		var issues []ValidationIssue
		switch {
		case json.Unmarshal(payload.Detail, &s) == nil:
			e.Detail = s
		case json.Unmarshal(payload.Detail, &issues) == nil:
			e.Validation = issues
		}
	}
	if e.Detail == "" {
		e.Detail = payload.Message
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pianista api: status %d: %s", e.StatusCode, e.Message())
}

// Message renders the error for people. A 422 is flattened to
// "Validation Error: loc.path: msg, ...".
func (e *APIError) Message() string {
	if e.StatusCode == http.StatusUnprocessableEntity {
		if len(e.Validation) == 0 {
			return "Validation Error: Invalid format"
		}
		msgs := make([]string, len(e.Validation))
		for i, v := range e.Validation {
			msgs[i] = v.Path() + ": " + v.Msg
		}
		return "Validation Error: " + strings.Join(msgs, ", ")
	}
	if e.Detail != "" {
		return e.Detail
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("Error %d", e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an
// [APIError].
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// StatusMessage turns err into a sentence suitable for a terminal or UI.
// op names what was being done ("plan retrieval", "solve submission") and
// is woven into the message; it may be empty.
func StatusMessage(err error, op string) string {
	if err == nil {
		return ""
	}

	var ae *APIError
	if !errors.As(err, &ae) {
		if IsTransportError(err) {
			if op != "" {
				return fmt.Sprintf("Network error during %s. Please check your connection.", op)
			}
			return "Network error. Please check your connection."
		}
		return err.Error()
	}

	suffix := ""
	if op != "" {
		suffix = " " + op
	}

	switch ae.StatusCode {
	case http.StatusAccepted:
		switch {
		case strings.Contains(op, "plan"):
			return "Planning process is still ongoing. Please check back later to retrieve the plan once it is complete."
		case strings.Contains(op, "solve"):
			return "Solution is still being processed. Please check back later."
		case op != "":
			return op + " is still processing. Please check back later."
		}
		return "Operation is still processing. Please check back later."
	case http.StatusNotFound:
		if ae.Detail != "" {
			return ae.Detail
		}
		switch {
		case strings.Contains(op, "plan"):
			return "Plan not found."
		case strings.Contains(op, "solve"):
			return "Solution not found."
		case op != "":
			return op + " not found."
		}
		return "Resource not found."
	case http.StatusUnprocessableEntity:
		return ae.Message()
	case http.StatusTooManyRequests:
		return fmt.Sprintf("Too many requests%s. Please wait a moment and try again.", suffix)
	case http.StatusInternalServerError:
		return fmt.Sprintf("Server error%s. Please try again later.", suffix)
	case http.StatusServiceUnavailable:
		return fmt.Sprintf("Service temporarily unavailable%s. Please try again later.", suffix)
	}
	if ae.Detail != "" {
		return ae.Detail
	}
	return fmt.Sprintf("Error %d%s", ae.StatusCode, suffix)
}
