//go:build !linux

package shm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MapRegion maps an existing shared memory object read-write (portable
// implementation on top of mmap-go).
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(opts.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}
	size := mapLength(info.Size(), opts.Size)
	if size == 0 {
		_ = f.Close()
		return nil, ErrEmptyObject
	}
	m, err := mmap.MapRegion(f, size, mmap.RDWR, 0, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &MappedRegion{
		Addr: m,
		Path: opts.Path,
		release: func() error {
			return errors.Join(m.Unmap(), f.Close())
		},
	}, nil
}
