package apiclient

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnreachable wraps transport failures: DNS, refused connections,
	// resets.
	ErrUnreachable = errors.New("api server unreachable")

	// ErrTimeout wraps requests that hit the client timeout.
	ErrTimeout = errors.New("api request timed out")

	ErrNoRefreshToken = errors.New("no refresh token available")
)

// User-facing texts for transport failures.
const (
	msgUnreachable = "Serveur injoignable (backend down ou URL incorrecte)."
	msgTimeout     = "Timeout: le serveur met trop de temps à répondre."
)

// APIError is a non-2xx response from the platform API.
type APIError struct {
	Status  int
	Message string
	Payload map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// newAPIError derives the message from the first of detail, message and
// error, falling back to the status code.
func newAPIError(status int, payload map[string]any) *APIError {
	msg := ""
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			msg = s
			break
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &APIError{Status: status, Message: msg, Payload: payload}
}

// FieldErrors flattens validation errors into field -> "a, b". The API
// returns them either under "errors" or as top-level lists.
func (e *APIError) FieldErrors() map[string]string {
	out := make(map[string]string)
	if e.Payload == nil {
		return out
	}

	// Top-level strings are messages, not field errors; nested ones are.
	source, nested := e.Payload, false
	if inner, ok := e.Payload["errors"].(map[string]any); ok {
		source, nested = inner, true
	}

	for field, v := range source {
		switch field {
		case "detail", "message", "error", "errors", "success":
			continue
		}
		switch val := v.(type) {
		case []any:
			if msg := joinMessages(val); msg != "" {
				out[field] = msg
			}
		case string:
			if nested && val != "" {
				out[field] = val
			}
		}
	}
	return out
}

func joinMessages(list []any) string {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			parts = append(parts, v)
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				parts = append(parts, fmt.Sprint(v[k]))
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ", ")
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Message returns the text shown to users for err.
func Message(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrTimeout):
		return msgTimeout
	case errors.Is(err, ErrUnreachable):
		return msgUnreachable
	default:
		return err.Error()
	}
}
