package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized marks HTTP 401 responses. The stored token has already
	// been evicted when a caller sees it.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict marks HTTP 412 responses to a stale If-Match.
	ErrConflict = errors.New("resource version conflict")
	// ErrNetwork marks requests that never received a response.
	ErrNetwork = errors.New("no response from server")
	// ErrRequestSetup marks requests that could not be built.
	ErrRequestSetup = errors.New("request setup failed")
)

// APIError is a non-2xx response. Message is the server-supplied text when
// the body carried one.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    string
	Err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Method:  method,
		Path:    path,
		Status:  status,
		Body:    string(body),
		Message: extractMessage(body),
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized:
		apiErr.Err = ErrUnauthorized
	case http.StatusPreconditionFailed:
		apiErr.Err = ErrConflict
	}
	return apiErr
}

// extractMessage understands the error shapes the backend is known to send:
// {"detail": ...}, {"message": ...}, {"non_field_errors": [...]},
// {"error": ...} and field maps like {"email": ["..."]}.
func extractMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	for _, key := range []string{"detail", "message", "non_field_errors", "error"} {
		if raw, ok := payload[key]; ok {
			if msg := rawToString(raw); msg != "" {
				return msg
			}
		}
	}
	for field, raw := range payload {
		if msg := rawToString(raw); msg != "" {
			return field + ": " + msg
		}
	}
	return ""
}

func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, " ")
	}
	return ""
}
