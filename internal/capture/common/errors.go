package common

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the capture interface is missing or empty
	ErrInvalidConfig = errors.New("invalid capture config")
	// ErrAlreadyCapturing is returned when a session is started while another is active
	ErrAlreadyCapturing = errors.New("capture already in progress")
	// ErrNotFound is returned for buffer indexes outside [0, length)
	ErrNotFound = errors.New("packet not found")
	// ErrDecode marks a frame that could not be classified
	ErrDecode = errors.New("frame decode failed")
	// ErrEncode marks a failure writing the interchange file
	ErrEncode = errors.New("capture encode failed")
)

// CaptureError is a failure reported by the capture primitive. Terminal
// errors (missing privileges, unknown device, bad filter) end the session;
// the rest are retried.
type CaptureError struct {
	Op       string
	Err      error
	Terminal bool
}

func (e *CaptureError) Error() string {
	kind := "transient"
	if e.Terminal {
		kind = "terminal"
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, kind, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable capture failure
func Transient(op string, err error) error {
	return &CaptureError{Op: op, Err: err}
}

// Terminal wraps err as a capture failure that ends the session
func Terminal(op string, err error) error {
	return &CaptureError{Op: op, Err: err, Terminal: true}
}

// IsTerminal reports whether err should end the capture session. Errors that
// are not a *CaptureError are treated as transient.
func IsTerminal(err error) bool {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Terminal
	}
	return false
}
