// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// ByteBuffer is the application read/write buffer owned by a Channel
// Wrapper: a growable byte slice with independent read and write
// cursors (spec.md §3). BufferPool is the bounded LIFO cache of
// ByteBuffers, generalizing the teacher's NUMA-keyed
// BufferPoolManager into a single-tier pool sized by the endpoint's
// appReadBufSize/appWriteBufSize knobs.

package pool

import "github.com/momentics/nio-endpoint/api"

// ByteBuffer is a reusable byte buffer with independent read/write
// positions, matching the Channel Wrapper's readBuffer/writeBuffer.
type ByteBuffer struct {
	Buf  []byte // backing storage, grown by Grow as needed
	RPos int    // next byte to read
	WPos int    // next byte to write / one past last valid byte
}

// NewByteBuffer allocates a ByteBuffer with the given initial capacity.
func NewByteBuffer(size int) *ByteBuffer {
	return &ByteBuffer{Buf: make([]byte, size)}
}

// Reset rewinds both cursors to zero without releasing the backing
// array, so the same allocation is reused across keep-alive requests.
func (b *ByteBuffer) Reset() {
	b.RPos = 0
	b.WPos = 0
}

// Remaining returns the number of unread bytes between RPos and WPos.
func (b *ByteBuffer) Remaining() int { return b.WPos - b.RPos }

// Capacity returns the size of the backing array.
func (b *ByteBuffer) Capacity() int { return len(b.Buf) }

// Grow extends the backing array to at least n bytes, preserving
// already-written content. BufferPool.Get uses it to size a cached
// buffer to the request.
func (b *ByteBuffer) Grow(n int) {
	if cap(b.Buf) >= n {
		b.Buf = b.Buf[:n]
		return
	}
	next := make([]byte, n)
	copy(next, b.Buf[:b.WPos])
	b.Buf = next
}

// BufferPool is a bounded LIFO cache of ByteBuffers of a fixed size
// class. Overflow on Put discards the buffer; underflow on Get
// allocates a fresh one of the pool's configured size.
type BufferPool struct {
	lifo *LIFOPool[*ByteBuffer]
	size int
}

var _ api.BytePool = (*BufferPool)(nil)

// NewBufferPool creates a pool of buffers of the given byte size, with
// at most capacity buffers cached at once.
func NewBufferPool(size, capacity int) *BufferPool {
	return &BufferPool{lifo: NewLIFOPool[*ByteBuffer](capacity), size: size}
}

// Get returns a buffer from the pool, allocating a new one if empty.
// The returned buffer is reset and its backing array is at least n
// bytes (growing it if the pooled instance was smaller).
func (p *BufferPool) Get(n int) *ByteBuffer {
	if b, ok := p.lifo.Get(); ok {
		b.Reset()
		if b.Capacity() < n {
			b.Grow(n)
		}
		return b
	}
	size := p.size
	if n > size {
		size = n
	}
	return NewByteBuffer(size)
}

// Put returns a buffer to the pool for reuse.
func (p *BufferPool) Put(b *ByteBuffer) {
	if b == nil {
		return
	}
	p.lifo.Put(b)
}

// Acquire implements api.BytePool by handing back the backing slice of
// a pooled buffer sized at least n bytes.
func (p *BufferPool) Acquire(n int) []byte {
	return p.Get(n).Buf
}

// Release implements api.BytePool. Since api.BytePool only knows about
// raw slices it cannot restore cursor state; callers that need cursor
// semantics should use Get/Put with *ByteBuffer directly instead.
func (p *BufferPool) Release(buf []byte) {
	p.Put(&ByteBuffer{Buf: buf})
}
