package peer

import (
	"errors"
	"fmt"
)

// ConnectionError is returned when a peer could not be reached or did not
// answer with a well-formed JSON-RPC response (unreachable host, timeout,
// TLS failure, garbage body).
type ConnectionError struct {
	Locator string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Connection Error: %s: %v", e.Locator, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MakerError is an application-level rejection sent back by the peer.
type MakerError struct {
	Code    int
	Message string
	Data    string
}

func (e *MakerError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("Maker Error: %s (code %d): %s", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("Maker Error: %s (code %d)", e.Message, e.Code)
}

// IsConnectionError reports whether err is, or wraps, a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsMakerError reports whether err is, or wraps, a MakerError.
func IsMakerError(err error) bool {
	var me *MakerError
	return errors.As(err, &me)
}
