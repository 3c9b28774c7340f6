package poller

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/srediag/telemetry-shm/pkg/shm"
	"github.com/srediag/telemetry-shm/pkg/transport"
)

// NewBackOff returns the exponential policy used by the daemon between
// connection attempts. maxElapsed of zero retries until ctx is done.
func NewBackOff(initial, maxInterval, maxElapsed time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	if maxInterval > 0 {
		b.MaxInterval = maxInterval
	}
	b.MaxElapsedTime = maxElapsed
	return b
}

// Dial calls d until it succeeds, ctx is done, or b gives up. Only
// connection errors are retried; any other error is returned at once.
func Dial(ctx context.Context, d transport.Dialer, b backoff.BackOff, log hclog.Logger) (transport.Transport, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	op := func() (transport.Transport, error) {
		t, err := d(ctx)
		if err != nil && !shm.IsConnectionError(err) {
			return nil, backoff.Permanent(err)
		}
		return t, err
	}
	notify := func(err error, next time.Duration) {
		log.Debug("region unavailable, retrying", "error", err, "in", next)
	}
	return backoff.RetryNotifyWithData(op, backoff.WithContext(b, ctx), notify)
}
