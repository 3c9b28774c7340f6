// Package health provides liveness and readiness checks for a region
// consumer.
package health

import (
	"fmt"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/telemetry-shm/pkg/shm"
)

// Source reports the consumer's view of the region.
type Source interface {
	Status() shm.Status
	LastPoll() time.Time
	LastValid() time.Time
}

// Options tunes the checks.
type Options struct {
	// PollDeadline is how long the loop may go without polling before it is
	// considered stuck.
	PollDeadline time.Duration
	// StaleAfter is how old the last valid snapshot may be while ready.
	StaleAfter time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Polling fails when the source has not polled within d.
func Polling(src Source, d time.Duration, now func() time.Time) healthcheck.Check {
	return func() error {
		last := src.LastPoll()
		if last.IsZero() {
			return fmt.Errorf("no poll yet")
		}
		if age := now().Sub(last); age > d {
			return fmt.Errorf("last poll %s ago", age.Round(time.Millisecond))
		}
		return nil
	}
}

// Connected fails while the source holds no mapping.
func Connected(src Source) healthcheck.Check {
	return func() error {
		if st := src.Status(); st == shm.StatusDisconnected {
			return fmt.Errorf("region %s", st)
		}
		return nil
	}
}

// Fresh fails when no valid snapshot was seen within d. The error names the
// current status.
func Fresh(src Source, d time.Duration, now func() time.Time) healthcheck.Check {
	return func() error {
		last := src.LastValid()
		if last.IsZero() {
			return fmt.Errorf("no valid snapshot (status %s)", src.Status())
		}
		if age := now().Sub(last); age > d {
			return fmt.Errorf("last valid snapshot %s ago (status %s)", age.Round(time.Millisecond), src.Status())
		}
		return nil
	}
}

// NewHandler returns a handler serving /live and /ready for src. When reg is
// not nil the result of every check is exported as a gauge.
func NewHandler(src Source, opts Options, reg prometheus.Registerer) healthcheck.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollDeadline <= 0 {
		opts.PollDeadline = time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Second
	}

	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, "telemetry_shm")
	} else {
		h = healthcheck.NewHandler()
	}
	h.AddLivenessCheck("polling", Polling(src, opts.PollDeadline, opts.Now))
	h.AddReadinessCheck("connected", Connected(src))
	h.AddReadinessCheck("fresh", Fresh(src, opts.StaleAfter, opts.Now))
	return h
}
