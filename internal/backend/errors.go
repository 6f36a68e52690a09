package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gallery/internal/services"
)

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the services marker matching the status code.
func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return services.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return services.ErrNotFound
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout:
		return services.ErrTimeout
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return services.ErrValidation
	default:
		return services.ErrTransient
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// ErrorMessage extracts a readable message from an error response body. It
// prefers a JSON `detail` (the backend) then `error` (the proxy), and falls
// back to the trimmed body or the status text.
func ErrorMessage(status int, body []byte) string {
	if msg, ok := DetailMessage(body); ok {
		return msg
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") && len(text) <= 512 {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}

// DetailMessage returns the `detail` or `error` field of a JSON error body.
func DetailMessage(body []byte) (string, bool) {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	if msg := detailText(payload.Detail); msg != "" {
		return msg, true
	}
	if msg := strings.TrimSpace(payload.Error); msg != "" {
		return msg, true
	}
	return "", false
}

// detailText handles both string details and validation error lists.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if m := strings.TrimSpace(item.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
