package email

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means the mail server could not be reached (network, DNS or TLS)
	ErrConnection = errors.New("mail server unreachable")

	// ErrAuthentication means the server rejected the credentials
	ErrAuthentication = errors.New("credentials rejected")

	// ErrClosed is returned when a closed session is used
	ErrClosed = errors.New("session closed")
)

// FetchError is a session-level failure while reading the inbox
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed during %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SendError is any failure while composing or submitting a message
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed during %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an authentication failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsConnectionError reports whether err (or any error in its chain) is a connection failure
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

func connectionError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
}

func authError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrAuthentication, err)
}
