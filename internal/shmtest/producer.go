// Package shmtest provides a stand-in producer for tests: it creates a
// region file of the real size and writes producer-owned fields into it
// through ordinary file I/O, the way a separate process would.
package shmtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srediag/telemetry-shm/pkg/layout"
)

// Producer owns a region file for the duration of a test.
type Producer struct {
	t    testing.TB
	f    *os.File
	path string
	lay  layout.Layout
}

// NewRegion creates a zeroed region with the default layout.
func NewRegion(t testing.TB) *Producer {
	return NewRegionWithLayout(t, layout.Default)
}

// NewRegionWithLayout creates a zeroed region of layout.RegionSize bytes.
func NewRegionWithLayout(t testing.TB, lay layout.Layout) *Producer {
	t.Helper()
	path := filepath.Join(t.TempDir(), layout.DefaultName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(layout.RegionSize))
	t.Cleanup(func() { _ = f.Close() })
	return &Producer{t: t, f: f, path: path, lay: lay}
}

// Path returns the region file path.
func (p *Producer) Path() string { return p.path }

// Dir and Name split Path the way OpenOptions takes them.
func (p *Producer) Dir() string  { return filepath.Dir(p.path) }
func (p *Producer) Name() string { return filepath.Base(p.path) }

// Init stamps the sentinel and, when nonzero, the base address, leaving
// every other field alone.
func (p *Producer) Init(base uint64) {
	p.t.Helper()
	h := p.Header()
	h.Magic = layout.Sentinel
	h.BaseAddress = base
	p.WriteHeader(h)
}

// Header reads the header back from the file.
func (p *Producer) Header() layout.Header {
	p.t.Helper()
	buf := p.ReadAt(0, p.lay.HeaderSize())
	h, err := p.lay.DecodeHeader(buf)
	require.NoError(p.t, err)
	return h
}

// WriteHeader overwrites the header.
func (p *Producer) WriteHeader(h layout.Header) {
	p.t.Helper()
	buf := make([]byte, p.lay.HeaderSize())
	require.NoError(p.t, p.lay.EncodeHeader(buf, h))
	p.WriteAt(0, buf)
}

// WritePlayers copies the records and then publishes the count, in the
// producer's order.
func (p *Producer) WritePlayers(players []layout.Player) {
	p.t.Helper()
	require.LessOrEqual(p.t, len(players), layout.MaxPlayers)
	buf := make([]byte, len(players)*layout.PlayerSize)
	for i, pl := range players {
		require.NoError(p.t, layout.EncodePlayer(buf[i*layout.PlayerSize:], pl))
	}
	p.WriteAt(p.lay.PlayersOffset(), buf)
	h := p.Header()
	h.PlayerCount = uint64(len(players))
	p.WriteHeader(h)
}

// WriteSpectators copies the names and then publishes the count.
func (p *Producer) WriteSpectators(names ...string) {
	p.t.Helper()
	require.LessOrEqual(p.t, len(names), layout.MaxSpectators)
	buf := make([]byte, len(names)*layout.SpectatorSize)
	for i, n := range names {
		require.NoError(p.t, layout.EncodeSpectator(buf[i*layout.SpectatorSize:], layout.Spectator{Name: n}))
	}
	p.WriteAt(p.lay.SpectatorsOffset(), buf)
	h := p.Header()
	h.SpectatorListCount = uint64(len(names))
	p.WriteHeader(h)
}

// WriteSnapshot overwrites the whole data span, settings included.
func (p *Producer) WriteSnapshot(s *layout.Snapshot) {
	p.t.Helper()
	buf := make([]byte, p.lay.Size())
	require.NoError(p.t, p.lay.Encode(buf, s))
	p.WriteAt(0, buf)
}

// Settings reads the settings block the way the producer polls it.
func (p *Producer) Settings() layout.Settings {
	p.t.Helper()
	s, err := layout.DecodeSettings(p.ReadAt(p.lay.SettingsOffset(), layout.SettingsSize))
	require.NoError(p.t, err)
	return s
}

// Bytes returns a copy of the data span.
func (p *Producer) Bytes() []byte {
	p.t.Helper()
	return p.ReadAt(0, p.lay.Size())
}

// ReadAt reads n bytes at off.
func (p *Producer) ReadAt(off, n int) []byte {
	p.t.Helper()
	buf := make([]byte, n)
	_, err := p.f.ReadAt(buf, int64(off))
	require.NoError(p.t, err)
	return buf
}

// WriteAt writes b at off.
func (p *Producer) WriteAt(off int, b []byte) {
	p.t.Helper()
	_, err := p.f.WriteAt(b, int64(off))
	require.NoError(p.t, err)
}

// Truncate resizes the backing file, simulating an object that shrank.
func (p *Producer) Truncate(size int64) {
	p.t.Helper()
	require.NoError(p.t, p.f.Truncate(size))
}

// Remove unlinks the region file.
func (p *Producer) Remove() {
	p.t.Helper()
	require.NoError(p.t, os.Remove(p.path))
}
