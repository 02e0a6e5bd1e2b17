package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the service.
type Error struct {
	StatusCode int
	Status     string
	Details    string
	Message    string
	Body       string
}

type errorBody struct {
	Details any    `json:"details"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newError(resp *http.Response, raw []byte) *Error {
	e := &Error{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(raw))}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Details = detailsString(body.Details)
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
	}
	return e
}

// Error implements error.
func (e *Error) Error() string {
	if msg := e.ServerMessage(); msg != "" {
		return fmt.Sprintf("%s: %s", e.Status, msg)
	}
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// ServerMessage returns the most specific message the server supplied.
func (e *Error) ServerMessage() string {
	if e.Details != "" {
		return e.Details
	}
	return e.Message
}

// ServerMessage extracts the server-supplied message from err, if any.
func ServerMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.ServerMessage()
	}
	return ""
}

// details is sometimes a string and sometimes a list of validation messages.
func detailsString(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	case []any:
		parts := make([]string, 0, len(d))
		for _, item := range d {
			if s := detailsString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if msg, ok := d["message"].(string); ok {
			return msg
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return fmt.Sprint(d)
	}
}
