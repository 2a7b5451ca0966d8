package mail

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the email API. Message is the
// best-effort extraction from the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// NetworkError is a transport-level failure or timeout before a response
// could be classified.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: extractErrorMessage(body)}
}

// extractErrorMessage pulls a human-readable message out of heterogeneous
// error-response shapes. Strategies are tried in order: a top-level error
// field (string or object), an errors list nested under data, a generic
// message field, then a raw body snippet.
func extractErrorMessage(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return snippet(body)
	}

	if v, ok := parsed["error"]; ok && v != nil {
		if obj, isObj := v.(map[string]any); isObj {
			if s, _ := obj["message"].(string); s != "" {
				return s
			}
			if s, _ := obj["description"].(string); s != "" {
				return s
			}
			return fmt.Sprint(obj)
		}
		return fmt.Sprint(v)
	}

	if data, ok := parsed["data"].(map[string]any); ok {
		errs := data["errors"]
		if errs == nil {
			errs = data["error"]
		}
		switch ev := errs.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, 5)
			for _, e := range ev {
				parts = append(parts, fmt.Sprint(e))
				if len(parts) == 5 {
					break
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		default:
			return fmt.Sprint(ev)
		}
	}

	if s, _ := parsed["message"].(string); s != "" {
		return s
	}
	return snippet(body)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
