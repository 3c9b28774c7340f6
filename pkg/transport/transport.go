// Package transport defines the interface consumers drive the telemetry
// region through. *shm.Client is the production implementation.
package transport

import (
	"context"

	"github.com/srediag/telemetry-shm/pkg/layout"
)

// Transport is a live connection to the region.
type Transport interface {
	// ReadSnapshot returns an owned copy of the region, valid or not.
	ReadSnapshot(ctx context.Context) (*layout.Snapshot, error)
	// WriteSettings replaces the settings block only.
	WriteSettings(ctx context.Context, s layout.Settings) error
	// Close releases the connection.
	Close() error
}

// Dialer opens a Transport. It should return *shm.ConnectionError when the
// region is unreachable.
type Dialer func(ctx context.Context) (Transport, error)
