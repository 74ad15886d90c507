package remote

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultErrorMessage is used when the server supplies neither a message nor an error field.
const DefaultErrorMessage = "An unexpected error occurred"

// ErrorData is the uniform error body handed to callers.
type ErrorData struct {
	Message       string          `json:"message"`
	OriginalError json.RawMessage `json:"originalError,omitempty"`
}

// QueryError is a failed request after retries. Status is 0 for network-level failures.
type QueryError struct {
	Status  int       `json:"status"`
	Data    ErrorData `json:"data"`
	Timeout bool      `json:"timeout,omitempty"`
	Cause   error     `json:"-"`
}

func (e *QueryError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("remote: request timed out: %s", e.Data.Message)
	case e.Status == 0:
		if e.Cause != nil {
			return fmt.Sprintf("remote: network error: %v", e.Cause)
		}
		return "remote: network error: " + e.Data.Message
	default:
		return fmt.Sprintf("remote: status %d: %s", e.Status, e.Data.Message)
	}
}

func (e *QueryError) Unwrap() error { return e.Cause }

// Kind classifies a failure.
type Kind int

const (
	Permanent Kind = iota
	Transient
)

func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// AsQueryError extracts a *QueryError from err.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// Message returns the human-readable message of err.
func Message(err error) string {
	if qe, ok := AsQueryError(err); ok {
		return qe.Data.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// shapeError builds the uniform error from a non-2xx response body.
func shapeError(status int, body []byte) *QueryError {
	qe := &QueryError{Status: status, Data: ErrorData{Message: DefaultErrorMessage}}
	if len(body) == 0 {
		return qe
	}
	if json.Valid(body) {
		qe.Data.OriginalError = json.RawMessage(body)
	} else {
		raw, _ := json.Marshal(string(body))
		qe.Data.OriginalError = raw
		return qe
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return qe
	}
	if msg := stringField(fields, "message"); msg != "" {
		qe.Data.Message = msg
	} else if msg := stringField(fields, "error"); msg != "" {
		qe.Data.Message = msg
	}
	return qe
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
