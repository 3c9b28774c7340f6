// Package shm is the consumer side of the telemetry region: it maps the
// object the producer created, copies decoded snapshots out of it and writes
// the settings block back.
//
// There is no cross-process lock. Reads may observe a torn mix of two
// producer frames; callers must pass every snapshot through the validity
// gate and iterate records only through the clamped Live* accessors.
// Settings writes are confined to the settings byte range, so they never
// overwrite producer-owned fields.
//
// The package is instrumented with OpenTelemetry metrics and tracing
// (OTel Go SDK v1.30.0). Both default to noop providers.
//
// Example usage:
//
//	c, err := shm.Open(ctx, shm.OpenOptions{})
//	if err != nil {
//	  // *shm.ConnectionError: producer not running
//	}
//	defer c.Close()
//	snap, err := c.ReadSnapshot(ctx)
//	if err == nil && snap.Valid() {
//	  for _, p := range snap.LivePlayers() {
//	    // ...
//	  }
//	}
//
// Platform-specific helpers are in internal/shm.
package shm
