package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout is returned when a request does not complete within its timeout.
var ErrTimeout = errors.New("request timeout")

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// IsUnauthorized reports whether err means the access token was rejected:
// either a 401 status or a message mentioning "Unauthorized".
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == 401 {
		return true
	}
	return strings.Contains(err.Error(), "Unauthorized")
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newHTTPError(status int, body []byte) *HTTPError {
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return &HTTPError{Status: status, Message: eb.Message}
		}
		if eb.Error != "" {
			return &HTTPError{Status: status, Message: eb.Error}
		}
	}
	return &HTTPError{Status: status, Message: fmt.Sprintf("http error: status %d", status)}
}
