// Package shm contains platform-specific helpers for mapping an existing
// shared memory object.
package shm

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrEmptyObject is returned when the backing object has zero length.
	ErrEmptyObject = errors.New("shared memory object is empty")
	// ErrOutOfBounds is returned for a copy that does not fit the mapping.
	ErrOutOfBounds = errors.New("copy outside mapped range")
	// ErrFault is returned when the mapping faulted during a copy, which
	// happens when the object is truncated while mapped.
	ErrFault = errors.New("memory fault in mapped region")
	// ErrUnmapped is returned for a copy on a released region.
	ErrUnmapped = errors.New("region is not mapped")
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Path string

	release func() error
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	// Path of the existing object, e.g. /dev/shm/<name>.
	Path string
	// Size caps the mapping length. Zero maps the whole object.
	Size int
}

// Function implementations of MapRegion are provided in platform_linux.go
// and platform_other.go.

// UnmapRegion releases the mapping. It is safe to call more than once.
func UnmapRegion(region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	release := region.release
	region.Addr = nil
	region.release = nil
	if release == nil {
		return nil
	}
	return release()
}

func mapLength(objSize int64, limit int) int {
	if objSize <= 0 {
		return 0
	}
	if limit > 0 && objSize > int64(limit) {
		return limit
	}
	return int(objSize)
}

// Len returns the mapped length.
func (r *MappedRegion) Len() int { return len(r.Addr) }

// CopyOut copies len(dst) bytes starting at off out of the mapping.
func (r *MappedRegion) CopyOut(dst []byte, off int) (err error) {
	if err := r.check(off, len(dst)); err != nil {
		return err
	}
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer recoverFault(&err)
	copy(dst, r.Addr[off:off+len(dst)])
	return nil
}

// CopyIn copies src into the mapping starting at off. No byte outside
// [off, off+len(src)) is written.
func (r *MappedRegion) CopyIn(off int, src []byte) (err error) {
	if err := r.check(off, len(src)); err != nil {
		return err
	}
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer recoverFault(&err)
	copy(r.Addr[off:off+len(src)], src)
	return nil
}

func (r *MappedRegion) check(off, n int) error {
	if r == nil || r.Addr == nil {
		return ErrUnmapped
	}
	if off < 0 || n < 0 || off+n > len(r.Addr) {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfBounds, off, off+n, len(r.Addr))
	}
	return nil
}

// recoverFault turns the panic raised by SetPanicOnFault into ErrFault.
// Any other panic is propagated.
func recoverFault(err *error) {
	v := recover()
	if v == nil {
		return
	}
	if f, ok := v.(interface{ Addr() uintptr }); ok {
		*err = fmt.Errorf("%w at %#x", ErrFault, f.Addr())
		return
	}
	panic(v)
}
