package comfyui

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResponse indicates the engine answered 2xx without the expected field.
var ErrEmptyResponse = errors.New("engine response is missing the expected field")

// HTTPError is a non-2xx answer from the engine.
type HTTPError struct {
	Op         string // Operation being performed (e.g., "upload image")
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Status)
}

// IsHTTPStatus reports whether err is an HTTPError with the given status code.
func IsHTTPStatus(err error, statusCode int) bool {
	var httpErr *HTTPError

	return errors.As(err, &httpErr) && httpErr.StatusCode == statusCode
}

func newHTTPError(op string, resp *http.Response, body []byte) *HTTPError {
	status := http.StatusText(resp.StatusCode)
	if status == "" {
		status = resp.Status
	}

	return &HTTPError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     status,
		Body:       string(body),
	}
}
