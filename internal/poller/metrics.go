package poller

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/telemetry-shm/pkg/layout"
)

const (
	namespace = "telemetry_shm"
	subsystem = "poller"
)

type metrics struct {
	polls      *prometheus.CounterVec
	writes     *prometheus.CounterVec
	dropped    prometheus.Counter
	reconnects prometheus.Counter
	players    prometheus.Gauge
	spectators prometheus.Gauge
	lastValid  prometheus.Gauge
}

// newMetrics builds the collectors and registers them on reg when it is
// not nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "polls_total",
			Help:      "Region polls by resulting status.",
		}, []string{"status"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "settings_writes_total",
			Help:      "Settings writes by result.",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_dropped_total",
			Help:      "Events discarded because the subscriber queue was full.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnects_total",
			Help:      "Transports opened after a disconnect.",
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live_players",
			Help:      "Players in the last valid snapshot.",
		}),
		spectators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live_spectators",
			Help:      "Spectator names in the last valid snapshot.",
		}),
		lastValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_valid_timestamp_seconds",
			Help:      "Unix time of the last valid snapshot.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.polls, m.writes, m.dropped, m.reconnects, m.players, m.spectators, m.lastValid,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(ev Event, good *layout.Snapshot) {
	m.polls.WithLabelValues(ev.Status.String()).Inc()
	if !ev.Status.Usable() || good == nil {
		return
	}
	m.players.Set(float64(len(good.LivePlayers())))
	m.spectators.Set(float64(len(good.LiveSpectators())))
	m.lastValid.Set(float64(ev.At.UnixNano()) / 1e9)
}
