// File: endpoint/channel_wrapper.go
// Author: momentics <momentics@gmail.com>
//
// ChannelWrapper is the per-connection object of spec §3: it owns the
// raw socket, the application read/write buffers, interest ops, and
// timeout bookkeeping. It is reset rather than reallocated between
// keep-alive requests and may itself be pooled across accepted
// connections (see endpoint.Endpoint's channelPool).
package endpoint

import (
	"crypto/tls"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/pool"
	"golang.org/x/sys/unix"
)

// SendfileState carries the parameters of an in-progress zero-copy
// file transfer (spec §4.6).
type SendfileState struct {
	FileFD      int
	Offset      int64
	Length      int64
	KeepAlive   api.KeepAliveDisposition
}

// ChannelWrapper is not safe for concurrent use by more than one
// goroutine at a time; the spec's ordering guarantee (READ/WRITE/
// TIMEOUT dispatch never run concurrently for one connection) is what
// makes that safe in practice.
type ChannelWrapper struct {
	FD       int
	TLSConn  *tls.Conn // nil unless SSLEnabled and handshake started
	Endpoint *Endpoint // non-owning back-reference, spec §9

	Selector *SelectorPool

	ReadBuffer  *pool.ByteBuffer
	WriteBuffer *pool.ByteBuffer

	interestOps atomic.Uint32

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	lastRead     atomic.Int64 // UnixNano
	lastWrite    atomic.Int64

	KeepAliveLeft int
	Sendfile      *SendfileState
	Err           error

	// ProcessorState is the protocol handler's own per-connection
	// state (e.g. the http1 package's parsed-request scratch space),
	// opaque to endpoint itself and reset alongside everything else.
	ProcessorState any

	handshakeDone bool

	mu sync.Mutex

	// readGate/writeGate are allocated but not used: blocking worker
	// I/O waits for readiness through the Selector Pool's WaitFor,
	// never through the Poller's selector.
	readGate  chan struct{}
	writeGate chan struct{}
}

// NewChannelWrapper allocates a wrapper sized per cfg's buffer knobs.
// Call Reset to rebind it to a freshly accepted fd instead of
// allocating a new one when reusing a pooled instance.
func NewChannelWrapper(ep *Endpoint, fd int, cfg *Config) *ChannelWrapper {
	cw := &ChannelWrapper{
		Endpoint:      ep,
		FD:            fd,
		Selector:      ep.selector,
		ReadBuffer:    pool.NewByteBuffer(cfg.AppReadBufSize),
		WriteBuffer:   pool.NewByteBuffer(cfg.AppWriteBufSize),
		ReadTimeout:   cfg.ConnectionTimeout,
		WriteTimeout:  cfg.ConnectionTimeout,
		KeepAliveLeft: cfg.MaxKeepAliveRequests,
	}
	cw.interestOps.Store(uint32(api.OpRead))
	now := time.Now().UnixNano()
	cw.lastRead.Store(now)
	cw.lastWrite.Store(now)
	return cw
}

// Reset rebinds a pooled wrapper to a newly accepted fd, clearing all
// per-connection state without reallocating the buffers.
func (cw *ChannelWrapper) Reset(fd int, cfg *Config) {
	cw.FD = fd
	cw.TLSConn = nil
	cw.ReadBuffer.Reset()
	cw.WriteBuffer.Reset()
	cw.interestOps.Store(uint32(api.OpRead))
	now := time.Now().UnixNano()
	cw.lastRead.Store(now)
	cw.lastWrite.Store(now)
	cw.ReadTimeout = cfg.ConnectionTimeout
	cw.WriteTimeout = cfg.ConnectionTimeout
	cw.KeepAliveLeft = cfg.MaxKeepAliveRequests
	cw.Sendfile = nil
	cw.Err = nil
	cw.handshakeDone = false
	cw.ProcessorState = nil
}

// NextRequest prepares the wrapper for the next pipelined/keep-alive
// request on the same connection (spec §8 scenario 7): same instance,
// decremented keep-alive budget.
func (cw *ChannelWrapper) NextRequest() {
	if cw.KeepAliveLeft > 0 {
		cw.KeepAliveLeft--
	}
}

func (cw *ChannelWrapper) InterestOps() api.InterestOps {
	return api.InterestOps(cw.interestOps.Load())
}

func (cw *ChannelWrapper) SetInterestOps(ops api.InterestOps) {
	cw.interestOps.Store(uint32(ops))
}

func (cw *ChannelWrapper) AddInterestOps(ops api.InterestOps) {
	for {
		old := cw.interestOps.Load()
		next := old | uint32(ops)
		if cw.interestOps.CompareAndSwap(old, next) {
			return
		}
	}
}

func (cw *ChannelWrapper) ClearInterestOps(ops api.InterestOps) {
	for {
		old := cw.interestOps.Load()
		next := old &^ uint32(ops)
		if cw.interestOps.CompareAndSwap(old, next) {
			return
		}
	}
}

func (cw *ChannelWrapper) LastRead() time.Time  { return time.Unix(0, cw.lastRead.Load()) }
func (cw *ChannelWrapper) LastWrite() time.Time { return time.Unix(0, cw.lastWrite.Load()) }

func (cw *ChannelWrapper) touchRead()  { cw.lastRead.Store(time.Now().UnixNano()) }
func (cw *ChannelWrapper) touchWrite() { cw.lastWrite.Store(time.Now().UnixNano()) }

// ReadInto implements httpparse.Source without httpparse needing to
// import this package. A 0,nil result means "nothing available right
// now" on the non-blocking fd; io.EOF means the peer closed.
func (cw *ChannelWrapper) ReadInto(p []byte) (int, error) {
	var n int
	var err error
	if cw.TLSConn != nil {
		n, err = cw.TLSConn.Read(p)
	} else {
		n, err = unix.Read(cw.FD, p)
	}
	switch {
	case err == unix.EAGAIN:
		return 0, nil
	case n == 0 && err == nil:
		return 0, io.EOF
	case err != nil:
		return n, err
	}
	cw.touchRead()
	return n, nil
}

// WriteFrom writes p to the connection, returning the number of bytes
// actually written; a short write means the socket is not currently
// writable and the caller must re-arm OpWrite.
func (cw *ChannelWrapper) WriteFrom(p []byte) (int, error) {
	var n int
	var err error
	if cw.TLSConn != nil {
		n, err = cw.TLSConn.Write(p)
	} else {
		n, err = unix.Write(cw.FD, p)
	}
	if err == unix.EAGAIN {
		return n, nil
	}
	if err != nil {
		return n, err
	}
	cw.touchWrite()
	return n, nil
}

// WriteAll writes all of p, blocking via the Selector Pool (spec
// §4.5) whenever the socket is momentarily not writable, instead of
// returning a short write the caller must track itself. Appropriate
// for a worker goroutine, which is allowed to block (spec §5).
func (cw *ChannelWrapper) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := cw.WriteFrom(p)
		if n > 0 {
			p = p[n:]
		}
		if err != nil {
			return err
		}
		if n == 0 {
			if _, werr := cw.Selector.WaitFor(cw.FD, api.OpWrite, cw.WriteTimeout); werr != nil {
				return werr
			}
		}
	}
	return nil
}

// Close releases the underlying fd. Safe to call more than once.
func (cw *ChannelWrapper) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.FD < 0 {
		return nil
	}
	var err error
	if cw.TLSConn != nil {
		err = cw.TLSConn.Close()
	}
	if cerr := unix.Close(cw.FD); err == nil {
		err = cerr
	}
	cw.FD = -1
	return err
}
