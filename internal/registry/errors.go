package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by StatusError values with a 404 status.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response from the registry service.
type StatusError struct {
	StatusCode int
	Code       string // service error code, e.g. IotHubUnauthorizedAccess
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("registry: http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("registry: http %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus exposes the status code to retry classification.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// parseStatusError decodes the service error envelope. The service reports
// {"Message":"ErrorCode:Code;text","ExceptionMessage":"..."}; anything else
// is kept verbatim, truncated.
func parseStatusError(status int, body []byte) *StatusError {
	se := &StatusError{StatusCode: status}
	var env struct {
		Message          string `json:"Message"`
		ExceptionMessage string `json:"ExceptionMessage"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		msg := env.Message
		if rest, ok := strings.CutPrefix(msg, "ErrorCode:"); ok {
			code, text, _ := strings.Cut(rest, ";")
			se.Code, msg = code, text
		}
		se.Message = strings.TrimSpace(msg)
		return se
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	se.Message = msg
	return se
}
