package shm

import (
	"github.com/srediag/telemetry-shm/pkg/layout"
)

// Status classifies the outcome of one read for display. It is a
// classification, never an error.
type Status int

const (
	// StatusValid means the snapshot passed the validity gate.
	StatusValid Status = iota
	// StatusNotInitialized means the magic did not match: the producer is not
	// running or has not initialised the region yet.
	StatusNotInitialized
	// StatusNoTarget means the producer is up but has not located its target
	// process (base address is zero).
	StatusNoTarget
	// StatusIOError means the copy out of the mapping failed.
	StatusIOError
	// StatusDisconnected means no mapping is held.
	StatusDisconnected
)

var statusNames = [...]string{
	StatusValid:          "valid",
	StatusNotInitialized: "not_initialized",
	StatusNoTarget:       "no_target",
	StatusIOError:        "io_error",
	StatusDisconnected:   "disconnected",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Usable reports whether the fields of a snapshot with this status may be
// used.
func (s Status) Usable() bool { return s == StatusValid }

// Classify applies the validity gate and names the reason for a failure.
func Classify(s *layout.Snapshot) Status {
	switch {
	case s == nil:
		return StatusDisconnected
	case s.Header.Magic != layout.Sentinel:
		return StatusNotInitialized
	case s.Header.BaseAddress == 0:
		return StatusNoTarget
	default:
		return StatusValid
	}
}

// ClassifyError maps an error returned by this package to a status.
func ClassifyError(err error) Status {
	switch {
	case err == nil:
		return StatusValid
	case IsConnectionError(err):
		return StatusDisconnected
	default:
		return StatusIOError
	}
}
