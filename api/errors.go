package api

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFileType is returned by UploadFile before any request is made.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op         string // "failed to send message", ...
	Method     string
	Path       string
	StatusCode int
	Body       string // truncated response body
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %s returned %d", e.Op, e.Method, e.Path, e.StatusCode)
}

// IsStatus reports whether err wraps a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
