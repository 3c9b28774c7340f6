// Package poller drives a transport at a fixed cadence, keeps the last valid
// snapshot, and fans every poll out to subscribers.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/shm"
	"github.com/srediag/telemetry-shm/pkg/transport"
)

const (
	// DefaultInterval is one frame at 60 Hz.
	DefaultInterval  = 16 * time.Millisecond
	defaultQueueSize = 256
	defaultWorkers   = 4
)

var (
	// ErrRunning is returned by Run when the poller is already running.
	ErrRunning = errors.New("poller: already running")
	// ErrNoTransport is returned by WriteSettings while disconnected.
	ErrNoTransport = errors.New("poller: no transport")
)

// Config controls the loop.
type Config struct {
	Interval  time.Duration `koanf:"interval"`
	QueueSize int           `koanf:"queue_size"`
	Workers   int           `koanf:"workers"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	return c
}

// Event is the outcome of one poll. Snapshot is the snapshot read on this
// poll (nil when the read failed) and is shared between subscribers; treat
// it as read-only.
type Event struct {
	Status   shm.Status
	Snapshot *layout.Snapshot
	Err      error
	At       time.Time
}

// State is the poller's view after the most recent poll.
type State struct {
	Status shm.Status
	Err    error
	// LastGood is a copy of the most recent valid snapshot, nil if none was
	// ever seen.
	LastGood  *layout.Snapshot
	LastValid time.Time
	LastPoll  time.Time
	Polls     uint64
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// WithRegisterer registers the poller's collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Poller) { p.reg = reg }
}

// WithRedial makes the poller drop its transport after an I/O error and
// dial a new one on later ticks.
func WithRedial(d transport.Dialer) Option {
	return func(p *Poller) { p.dial = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// Poller owns one transport. Run drives it; the other methods are safe to
// call concurrently with Run.
type Poller struct {
	cfg  Config
	log  hclog.Logger
	reg  prometheus.Registerer
	dial transport.Dialer
	now  func() time.Time

	metrics *metrics
	subs    *subscribers
	running atomic.Bool

	mu    sync.RWMutex
	tr    transport.Transport
	state State
}

// New creates a poller over t. t may be nil when WithRedial is given; the
// poller then starts disconnected.
func New(t transport.Transport, cfg Config, opts ...Option) (*Poller, error) {
	p := &Poller{
		cfg: cfg.withDefaults(),
		tr:  t,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = hclog.NewNullLogger()
	}
	if t == nil && p.dial == nil {
		return nil, ErrNoTransport
	}
	m, err := newMetrics(p.reg)
	if err != nil {
		return nil, err
	}
	p.metrics = m
	p.subs = newSubscribers()
	p.state.Status = shm.StatusDisconnected
	return p, nil
}

// Config returns the effective configuration.
func (p *Poller) Config() Config { return p.cfg }

// Subscribe registers fn for every event. fn runs on a worker pool and may
// be called concurrently for successive events. The returned cancel
// function removes the subscription.
func (p *Poller) Subscribe(fn func(Event)) (id string, cancel func()) {
	return p.subs.add(fn)
}

// Run polls until ctx is done and returns ctx.Err(). The first poll happens
// immediately.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer p.running.Store(false)

	q := newEventQueue(p.cfg.QueueSize)
	d, err := newDispatcher(p.subs, q, p.cfg.Workers, p.log)
	if err != nil {
		return err
	}
	go d.run()
	defer d.stop()

	p.log.Debug("poller started", "interval", p.cfg.Interval, "queue", q.Cap(), "workers", p.cfg.Workers)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.publish(q, p.Poll(ctx))
		select {
		case <-ctx.Done():
			p.log.Debug("poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) publish(q *eventQueue, ev Event) {
	if p.subs.len() == 0 {
		return
	}
	if !q.offer(ev) {
		p.metrics.dropped.Inc()
	}
}

// Poll performs one read and updates the state. Run calls it on every tick;
// it is exported for callers that drive their own cadence.
func (p *Poller) Poll(ctx context.Context) Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	ev := Event{At: p.now()}
	if p.tr == nil {
		p.redialLocked(ctx)
	}
	if p.tr == nil {
		ev.Status = shm.StatusDisconnected
		ev.Err = p.state.Err
	} else if snap, err := p.tr.ReadSnapshot(ctx); err != nil {
		ev.Status = shm.ClassifyError(err)
		ev.Err = err
		p.log.Debug("poll failed", "error", err)
		if p.dial != nil {
			p.dropLocked()
		}
	} else {
		ev.Status = shm.Classify(snap)
		ev.Snapshot = snap
	}

	p.state.Status = ev.Status
	p.state.Err = ev.Err
	p.state.LastPoll = ev.At
	p.state.Polls++
	if ev.Status.Usable() {
		p.state.LastGood = ev.Snapshot
		p.state.LastValid = ev.At
	}
	p.metrics.observe(ev, p.state.LastGood)
	return ev
}

func (p *Poller) redialLocked(ctx context.Context) {
	if p.dial == nil {
		return
	}
	t, err := p.dial(ctx)
	if err != nil {
		p.state.Err = err
		return
	}
	p.metrics.reconnects.Inc()
	p.log.Info("transport connected")
	p.tr = t
}

func (p *Poller) dropLocked() {
	if err := p.tr.Close(); err != nil {
		p.log.Warn("close transport", "error", err)
	}
	p.tr = nil
}

// State returns a copy of the current state. LastGood is owned by the
// caller.
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := p.state
	if st.LastGood != nil {
		cp := *st.LastGood
		st.LastGood = &cp
	}
	return st
}

// Status returns the status of the most recent poll.
func (p *Poller) Status() shm.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Status
}

// LastPoll returns the time of the most recent poll.
func (p *Poller) LastPoll() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.LastPoll
}

// LastValid returns the time of the most recent valid snapshot.
func (p *Poller) LastValid() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.LastValid
}

// WriteSettings forwards s to the transport synchronously.
func (p *Poller) WriteSettings(ctx context.Context, s layout.Settings) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tr == nil {
		p.metrics.writes.WithLabelValues("error").Inc()
		return ErrNoTransport
	}
	if err := p.tr.WriteSettings(ctx, s); err != nil {
		p.metrics.writes.WithLabelValues("error").Inc()
		return err
	}
	p.metrics.writes.WithLabelValues("ok").Inc()
	return nil
}

// Close closes the transport. The poller must not be running.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tr == nil {
		return nil
	}
	err := p.tr.Close()
	p.tr = nil
	return err
}
