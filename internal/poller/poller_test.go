package poller

//go:generate mockgen -destination mock_transport_test.go -package poller -write_package_comment=false github.com/srediag/telemetry-shm/pkg/transport Transport

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/srediag/telemetry-shm/internal/shmtest"
	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/shm"
	"github.com/srediag/telemetry-shm/pkg/transport"
)

func validSnapshot(players int) *layout.Snapshot {
	s := &layout.Snapshot{Header: layout.Header{
		Magic:       layout.Sentinel,
		BaseAddress: 0x7ff6_0000_0000,
		PlayerCount: uint64(players),
	}}
	for i := 0; i < players; i++ {
		s.Players[i] = layout.Player{Health: 100, Team: int32(i % 3)}
	}
	return s
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m.GetLabel(), labels) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	got := make(map[string]string, len(pairs))
	for _, lp := range pairs {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func newTestPoller(t *testing.T, tr transport.Transport, opts ...Option) (*Poller, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	p, err := New(tr, Config{Interval: time.Millisecond}, append(opts, WithRegisterer(reg))...)
	require.NoError(t, err)
	return p, reg
}

func TestPollKeepsLastGood(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)

	invalid := validSnapshot(0)
	invalid.Header.Magic = 0
	noTarget := validSnapshot(0)
	noTarget.Header.BaseAddress = 0
	ioErr := &shm.IoError{Op: "read", Err: errors.New("fault")}

	gomock.InOrder(
		tr.EXPECT().ReadSnapshot(gomock.Any()).Return(validSnapshot(3), nil),
		tr.EXPECT().ReadSnapshot(gomock.Any()).Return(invalid, nil),
		tr.EXPECT().ReadSnapshot(gomock.Any()).Return(noTarget, nil),
		tr.EXPECT().ReadSnapshot(gomock.Any()).Return(nil, ioErr),
	)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := start
	clock := func() time.Time {
		now := tick
		tick = tick.Add(time.Second)
		return now
	}

	p, reg := newTestPoller(t, tr, WithClock(clock))
	ctx := context.Background()
	assert.Equal(t, shm.StatusDisconnected, p.State().Status)

	ev := p.Poll(ctx)
	assert.Equal(t, shm.StatusValid, ev.Status)
	assert.Equal(t, start, ev.At)
	first := p.State()
	require.NotNil(t, first.LastGood)
	assert.Len(t, first.LastGood.LivePlayers(), 3)

	assert.Equal(t, shm.StatusNotInitialized, p.Poll(ctx).Status)
	assert.Equal(t, shm.StatusNoTarget, p.Poll(ctx).Status)
	ev = p.Poll(ctx)
	assert.Equal(t, shm.StatusIOError, ev.Status)
	assert.Nil(t, ev.Snapshot)
	assert.ErrorIs(t, ev.Err, ioErr)

	st := p.State()
	assert.Equal(t, shm.StatusIOError, st.Status)
	assert.Equal(t, uint64(4), st.Polls)
	require.NotNil(t, st.LastGood)
	assert.Len(t, st.LastGood.LivePlayers(), 3)
	assert.Equal(t, first.LastValid, st.LastValid)
	assert.Equal(t, start, p.LastValid())
	assert.Equal(t, start.Add(3*time.Second), p.LastPoll())
	assert.Equal(t, float64(start.Unix()), metricValue(t, reg, "telemetry_shm_poller_last_valid_timestamp_seconds", nil))

	assert.Equal(t, 1.0, metricValue(t, reg, "telemetry_shm_poller_polls_total", map[string]string{"status": "valid"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "telemetry_shm_poller_polls_total", map[string]string{"status": "io_error"}))
	assert.Equal(t, 3.0, metricValue(t, reg, "telemetry_shm_poller_live_players", nil))
}

func TestStateIsCopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)
	tr.EXPECT().ReadSnapshot(gomock.Any()).Return(validSnapshot(1), nil)

	p, _ := newTestPoller(t, tr)
	p.Poll(context.Background())

	a := p.State()
	a.LastGood.Players[0].Health = -1
	b := p.State()
	assert.Equal(t, int32(100), b.LastGood.Players[0].Health)
}

func TestIoErrorWithoutRedialKeepsTransport(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)
	gomock.InOrder(
		tr.EXPECT().ReadSnapshot(gomock.Any()).Return(nil, &shm.IoError{Op: "read", Err: shm.ErrShortRegion}),
		tr.EXPECT().ReadSnapshot(gomock.Any()).Return(validSnapshot(0), nil),
	)

	p, _ := newTestPoller(t, tr)
	assert.Equal(t, shm.StatusIOError, p.Poll(context.Background()).Status)
	assert.Equal(t, shm.StatusValid, p.Poll(context.Background()).Status)
}

func TestRedialAfterIoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockTransport(ctrl)
	second := NewMockTransport(ctrl)

	first.EXPECT().ReadSnapshot(gomock.Any()).Return(nil, &shm.IoError{Op: "read", Err: errors.New("fault")})
	first.EXPECT().Close().Return(nil)
	second.EXPECT().ReadSnapshot(gomock.Any()).Return(validSnapshot(2), nil)

	var dials atomic.Int32
	dial := func(context.Context) (transport.Transport, error) {
		if dials.Add(1) == 1 {
			return nil, &shm.ConnectionError{Path: "/dev/shm/x", Err: fs.ErrNotExist}
		}
		return second, nil
	}

	p, reg := newTestPoller(t, first, WithRedial(dial))
	ctx := context.Background()

	assert.Equal(t, shm.StatusIOError, p.Poll(ctx).Status)

	ev := p.Poll(ctx)
	assert.Equal(t, shm.StatusDisconnected, ev.Status)
	assert.True(t, shm.IsConnectionError(ev.Err))

	assert.Equal(t, shm.StatusValid, p.Poll(ctx).Status)
	assert.Equal(t, int32(2), dials.Load())
	assert.Equal(t, 1.0, metricValue(t, reg, "telemetry_shm_poller_reconnects_total", nil))
}

func TestNewWithoutTransport(t *testing.T) {
	_, err := New(nil, Config{})
	assert.ErrorIs(t, err, ErrNoTransport)

	p, err := New(nil, Config{}, WithRedial(func(context.Context) (transport.Transport, error) {
		return nil, &shm.ConnectionError{Path: "x", Err: fs.ErrNotExist}
	}))
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, p.Config().Interval)
	assert.Equal(t, shm.StatusDisconnected, p.Poll(context.Background()).Status)
	assert.ErrorIs(t, p.WriteSettings(context.Background(), layout.DefaultSettings()), ErrNoTransport)
}

func TestDuplicateRegistration(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := prometheus.NewRegistry()
	_, err := New(NewMockTransport(ctrl), Config{}, WithRegisterer(reg))
	require.NoError(t, err)
	_, err = New(NewMockTransport(ctrl), Config{}, WithRegisterer(reg))
	assert.Error(t, err)
}

func TestWriteSettingsPassThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)
	s := layout.DefaultSettings()
	s.ESPEnabled = true
	gomock.InOrder(
		tr.EXPECT().WriteSettings(gomock.Any(), s).Return(nil),
		tr.EXPECT().WriteSettings(gomock.Any(), s).Return(&shm.IoError{Op: "write", Err: shm.ErrClosed}),
	)

	p, reg := newTestPoller(t, tr)
	require.NoError(t, p.WriteSettings(context.Background(), s))
	err := p.WriteSettings(context.Background(), s)
	assert.ErrorIs(t, err, shm.ErrClosed)

	assert.Equal(t, 1.0, metricValue(t, reg, "telemetry_shm_poller_settings_writes_total", map[string]string{"result": "ok"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "telemetry_shm_poller_settings_writes_total", map[string]string{"result": "error"}))
}

func TestRunDeliversEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)
	tr.EXPECT().ReadSnapshot(gomock.Any()).Return(validSnapshot(1), nil).MinTimes(1)

	p, _ := newTestPoller(t, tr)
	events := make(chan Event, 16)
	_, cancelSub := p.Subscribe(func(ev Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case ev := <-events:
		assert.Equal(t, shm.StatusValid, ev.Status)
		require.NotNil(t, ev.Snapshot)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	assert.ErrorIs(t, p.Run(ctx), ErrRunning)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSubscribeCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	p, _ := newTestPoller(t, NewMockTransport(ctrl))

	id1, cancel1 := p.Subscribe(func(Event) {})
	id2, _ := p.Subscribe(func(Event) {})
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, p.subs.len())
	cancel1()
	cancel1()
	assert.Equal(t, 1, p.subs.len())
}

func TestFullQueueDropsEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	p, reg := newTestPoller(t, NewMockTransport(ctrl))
	p.Subscribe(func(Event) {})

	q := newEventQueue(2)
	defer q.dispose()
	for i := 0; i < 5; i++ {
		p.publish(q, Event{Status: shm.StatusValid})
	}

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 3.0, metricValue(t, reg, "telemetry_shm_poller_events_dropped_total", nil))

	ev, err := q.pop()
	require.NoError(t, err)
	assert.Equal(t, shm.StatusValid, ev.Status)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	ctrl := gomock.NewController(t)
	p, reg := newTestPoller(t, NewMockTransport(ctrl))
	q := newEventQueue(1)
	defer q.dispose()
	p.publish(q, Event{})
	p.publish(q, Event{})
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0.0, metricValue(t, reg, "telemetry_shm_poller_events_dropped_total", nil))
}

func TestDialRetriesConnectionErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	want := NewMockTransport(ctrl)
	attempts := 0
	d := func(context.Context) (transport.Transport, error) {
		attempts++
		if attempts < 3 {
			return nil, &shm.ConnectionError{Path: "x", Err: fs.ErrNotExist}
		}
		return want, nil
	}

	got, err := Dial(context.Background(), d, backoff.NewConstantBackOff(time.Millisecond), nil)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 3, attempts)
}

func TestDialStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	d := func(context.Context) (transport.Transport, error) {
		attempts++
		return nil, boom
	}
	_, err := Dial(context.Background(), d, backoff.NewConstantBackOff(time.Millisecond), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestDialHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := func(context.Context) (transport.Transport, error) {
		return nil, &shm.ConnectionError{Path: "x", Err: fs.ErrNotExist}
	}
	_, err := Dial(ctx, d, NewBackOff(time.Millisecond, 10*time.Millisecond, 0), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollerOverRegion(t *testing.T) {
	prod := shmtest.NewRegion(t)
	prod.Init(0x1000)
	prod.WritePlayers([]layout.Player{{Team: 1, Health: 80}, {Team: 2, Health: 60}})
	prod.WriteSpectators("alice")

	ctx := context.Background()
	c, err := shm.Open(ctx, shm.OpenOptions{Dir: prod.Dir(), Name: prod.Name()})
	require.NoError(t, err)

	p, _ := newTestPoller(t, c)
	defer p.Close()

	require.Equal(t, shm.StatusValid, p.Poll(ctx).Status)

	h := prod.Header()
	h.Magic = 0
	prod.WriteHeader(h)
	assert.Equal(t, shm.StatusNotInitialized, p.Poll(ctx).Status)

	st := p.State()
	require.NotNil(t, st.LastGood)
	assert.Len(t, st.LastGood.LivePlayers(), 2)
	assert.Equal(t, "alice", st.LastGood.LiveSpectators()[0].Name)

	s := layout.DefaultSettings()
	s.PlayerGlowEnabled = true
	require.NoError(t, p.WriteSettings(ctx, s))
	assert.Equal(t, s, prod.Settings())
}
