package poller

import (
	"time"

	"github.com/hashicorp/go-hclog"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/xid"
)

const releaseTimeout = time.Second

type subscribers struct {
	m cmap.ConcurrentMap[string, func(Event)]
}

func newSubscribers() *subscribers {
	return &subscribers{m: cmap.New[func(Event)]()}
}

func (s *subscribers) add(fn func(Event)) (string, func()) {
	id := xid.New().String()
	s.m.Set(id, fn)
	return id, func() { s.m.Remove(id) }
}

func (s *subscribers) len() int { return s.m.Count() }

// dispatcher drains the queue and runs each subscriber on the pool.
type dispatcher struct {
	subs *subscribers
	q    *eventQueue
	pool *ants.Pool
	log  hclog.Logger
	done chan struct{}
}

func newDispatcher(subs *subscribers, q *eventQueue, workers int, log hclog.Logger) (*dispatcher, error) {
	pool, err := ants.NewPool(workers,
		ants.WithLogger(log.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})),
		ants.WithPanicHandler(func(v any) {
			log.Error("subscriber panicked", "panic", v)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &dispatcher{subs: subs, q: q, pool: pool, log: log, done: make(chan struct{})}, nil
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		ev, err := d.q.pop()
		if err != nil {
			return
		}
		for item := range d.subs.m.IterBuffered() {
			fn := item.Val
			if err := d.pool.Submit(func() { fn(ev) }); err != nil {
				d.log.Warn("dispatch failed", "subscriber", item.Key, "error", err)
			}
		}
	}
}

// stop discards queued events and waits for running subscribers.
func (d *dispatcher) stop() {
	d.q.dispose()
	<-d.done
	if err := d.pool.ReleaseTimeout(releaseTimeout); err != nil {
		d.log.Warn("worker pool release", "error", err)
	}
}
