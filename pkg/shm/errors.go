package shm

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("shm: client closed")
	// ErrShortRegion is returned when the mapping is smaller than the
	// layout it is read or written with.
	ErrShortRegion = errors.New("shm: region shorter than layout")
)

// ConnectionError reports that the backing object is absent or could not be
// opened and mapped. It is never retried by this package.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("shm: connect %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IoError reports a failed copy on an established mapping. The client stays
// usable; the caller decides whether to reconnect.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("shm: %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsIoError reports whether err is or wraps an *IoError.
func IsIoError(err error) bool {
	var ie *IoError
	return errors.As(err, &ie)
}
