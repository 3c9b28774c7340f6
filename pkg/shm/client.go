package shm

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/telemetry-shm/internal/shm"
	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/transport"
)

var _ transport.Transport = (*Client)(nil)

// DefaultDir is where POSIX shared memory objects appear on Linux.
const DefaultDir = "/dev/shm"

// OpenOptions defines how the backing object is located and observed.
type OpenOptions struct {
	// Path is the full path of the object. It overrides Dir and Name.
	Path string
	// Dir is the directory holding the object (default DefaultDir).
	Dir string
	// Name is the object name (default layout.DefaultName).
	Name string
	// Layout is the region contract (default layout.Default).
	Layout layout.Layout

	Meter  metric.Meter
	Tracer trace.Tracer
	Logger hclog.Logger
}

// ResolvePath returns the object path the options select.
func (o OpenOptions) ResolvePath() string {
	if o.Path != "" {
		return o.Path
	}
	dir, name := o.Dir, o.Name
	if dir == "" {
		dir = DefaultDir
	}
	if name == "" {
		name = layout.DefaultName
	}
	return filepath.Join(dir, name)
}

// Client is a handle on one mapping of the region. All methods are safe for
// concurrent use; they serialise on a mutex local to this process.
type Client struct {
	mu     sync.Mutex
	region *internalshm.MappedRegion

	layout layout.Layout
	path   string
	log    hclog.Logger
	tracer trace.Tracer
	inst   *instruments
}

// Open maps an existing object read-write. It does not look at the
// contents; validity is judged per read. Any failure to reach the object is
// a *ConnectionError.
func Open(ctx context.Context, opts OpenOptions) (*Client, error) {
	lay := opts.Layout
	if lay.IsZero() {
		lay = layout.Default
	}
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	inst, err := newInstruments(opts.Meter)
	if err != nil {
		return nil, err
	}
	tracer := defaultTracer(opts.Tracer)
	path := opts.ResolvePath()

	ctx, span := tracer.Start(ctx, "shm.Open", trace.WithAttributes(attribute.String("shm.path", path)))
	defer span.End()

	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Path: path, Size: layout.RegionSize})
	if err != nil {
		cerr := &ConnectionError{Path: path, Err: err}
		span.RecordError(cerr)
		span.SetStatus(codes.Error, "open failed")
		log.Debug("cannot map region", "path", path, "error", err)
		return nil, cerr
	}
	if region.Len() < lay.Size() {
		// Reads will fail with ErrShortRegion until the producer sizes it.
		log.Warn("region shorter than layout", "path", path, "mapped", region.Len(), "layout", lay.Size())
	}
	log.Info("mapped region", "path", path, "length", region.Len(), "word_size", int(lay.WordSize()))

	return &Client{
		region: region,
		layout: lay,
		path:   path,
		log:    log,
		tracer: tracer,
		inst:   inst,
	}, nil
}

// Dialer returns a transport.Dialer that opens a client with opts.
func Dialer(opts OpenOptions) transport.Dialer {
	return func(ctx context.Context) (transport.Transport, error) {
		c, err := Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Path returns the path of the mapped object.
func (c *Client) Path() string { return c.path }

// Layout returns the contract the client decodes with.
func (c *Client) Layout() layout.Layout { return c.layout }

// ReadSnapshot copies the data span out of the mapping and decodes it. The
// result is returned whatever its validity; use Classify or Valid on it.
func (c *Client) ReadSnapshot(ctx context.Context) (*layout.Snapshot, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "shm.ReadSnapshot")
	defer span.End()

	buf := copyBuffers.Get(c.layout.Size())
	defer copyBuffers.Put(buf)

	if err := c.copyOut(0, buf.B); err != nil {
		c.inst.reads.Add(ctx, 1, outcome("error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	snap, err := c.layout.Decode(buf.B)
	if err != nil {
		ierr := &IoError{Op: "decode", Err: err}
		c.inst.reads.Add(ctx, 1, outcome("error"))
		span.RecordError(ierr)
		span.SetStatus(codes.Error, "decode failed")
		return nil, ierr
	}

	status := Classify(snap)
	c.inst.reads.Add(ctx, 1, outcome(status.String()))
	c.inst.readDuration.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("shm.status", status.String()),
		attribute.Int64("shm.player_count", int64(len(snap.LivePlayers()))),
	)
	if !snap.CountsInRange() {
		c.log.Trace("counters out of range", "players", snap.Header.PlayerCount, "spectators", snap.Header.SpectatorListCount)
	}
	return snap, nil
}

// ReadSettings copies only the settings block.
func (c *Client) ReadSettings(ctx context.Context) (layout.Settings, error) {
	_, span := c.tracer.Start(ctx, "shm.ReadSettings")
	defer span.End()

	var block [layout.SettingsSize]byte
	if err := c.copyOut(c.layout.SettingsOffset(), block[:]); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return layout.Settings{}, err
	}
	return layout.DecodeSettings(block[:])
}

// WriteSettings replaces the settings block. Exactly the bytes
// [SettingsOffset, SettingsOffset+SettingsSize) of the region are written,
// so concurrent producer updates elsewhere in the region are preserved.
func (c *Client) WriteSettings(ctx context.Context, s layout.Settings) error {
	ctx, span := c.tracer.Start(ctx, "shm.WriteSettings")
	defer span.End()

	var block [layout.SettingsSize]byte
	if err := layout.EncodeSettings(block[:], s); err != nil {
		return err
	}
	if err := c.copyIn(c.layout.SettingsOffset(), block[:]); err != nil {
		c.inst.writes.Add(ctx, 1, outcome("error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return err
	}
	c.inst.writes.Add(ctx, 1, outcome("ok"))
	c.log.Debug("settings written",
		"aim", s.AimEnabled, "esp", s.ESPEnabled, "glow", s.PlayerGlowEnabled,
		"no_recoil", s.AimNoRecoil, "max_dist", s.MaxDistance, "bone", s.Bone)
	return nil
}

// Close releases the mapping. Later calls return *IoError wrapping
// ErrClosed. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.region == nil {
		return nil
	}
	err := internalshm.UnmapRegion(c.region)
	c.region = nil
	if err != nil {
		return &IoError{Op: "close", Err: err}
	}
	c.log.Info("unmapped region", "path", c.path)
	return nil
}

func (c *Client) copyOut(off int, dst []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(off, len(dst), "read"); err != nil {
		return err
	}
	if err := c.region.CopyOut(dst, off); err != nil {
		return &IoError{Op: "read", Err: err}
	}
	return nil
}

func (c *Client) copyIn(off int, src []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(off, len(src), "write"); err != nil {
		return err
	}
	if err := c.region.CopyIn(off, src); err != nil {
		return &IoError{Op: "write", Err: err}
	}
	return nil
}

func (c *Client) checkLocked(off, n int, op string) error {
	if c.region == nil {
		return &IoError{Op: op, Err: ErrClosed}
	}
	if c.region.Len() < c.layout.Size() || off+n > c.region.Len() {
		return &IoError{Op: op, Err: fmt.Errorf("%w: mapped %d bytes, layout needs %d",
			ErrShortRegion, c.region.Len(), c.layout.Size())}
	}
	return nil
}
