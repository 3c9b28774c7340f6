package shm

import (
	"github.com/valyala/bytebufferpool"
)

// copyBuffers holds the scratch buffers a snapshot is copied into before it
// is decoded. A buffer never escapes ReadSnapshot.
var copyBuffers bufferPool

type bufferPool struct {
	pool bytebufferpool.Pool
}

// Get returns a buffer of exactly n bytes. Its contents are undefined.
func (p *bufferPool) Get(n int) *bytebufferpool.ByteBuffer {
	b := p.pool.Get()
	if cap(b.B) < n {
		b.B = make([]byte, n)
	}
	b.B = b.B[:n]
	return b
}

// Put returns b to the pool.
func (p *bufferPool) Put(b *bytebufferpool.ByteBuffer) {
	p.pool.Put(b)
}
