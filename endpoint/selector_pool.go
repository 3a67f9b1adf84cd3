// File: endpoint/selector_pool.go
// Author: momentics <momentics@gmail.com>
//
// SelectorPool is the bounded LIFO pool of secondary selectors of
// spec §4.5: workers that must block on read or write acquire one,
// register a single fd, wait, then deregister and return it. This
// decouples blocking worker I/O from the Poller's own selector, so a
// slow TLS handshake or a synchronous content-length body read never
// stalls the single Poller thread. Grounded on reactor.epollReactor
// (reactor/epoll_reactor.go), one epoll instance per pooled selector
// instead of one shared instance for the whole process.
package endpoint

import (
	"fmt"
	"time"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/pool"
	"golang.org/x/sys/unix"
)

// blockingSelector is a single-fd epoll instance used for one
// register/wait/deregister cycle at a time.
type blockingSelector struct {
	epfd int
}

func newBlockingSelector() (*blockingSelector, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("endpoint: epoll_create1 for selector pool: %w", err)
	}
	return &blockingSelector{epfd: fd}, nil
}

// waitFor blocks until fd becomes ready for ops or timeout elapses,
// returning the ready InterestOps (0 on timeout).
func (s *blockingSelector) waitFor(fd int, ops api.InterestOps, timeout time.Duration) (api.InterestOps, error) {
	var ev unix.EpollEvent
	if ops.Has(api.OpRead) {
		ev.Events |= unix.EPOLLIN
	}
	if ops.Has(api.OpWrite) {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(fd)
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return 0, fmt.Errorf("endpoint: selector register: %w", err)
	}
	defer unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)

	timeoutMs := -1
	if timeout > 0 {
		timeoutMs = int(timeout.Milliseconds())
	}
	events := make([]unix.EpollEvent, 1)
	n, err := unix.EpollWait(s.epfd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("endpoint: selector wait: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	var ready api.InterestOps
	if events[0].Events&unix.EPOLLIN != 0 {
		ready |= api.OpRead
	}
	if events[0].Events&unix.EPOLLOUT != 0 {
		ready |= api.OpWrite
	}
	return ready, nil
}

func (s *blockingSelector) close() error { return unix.Close(s.epfd) }

// SelectorPool hands out blockingSelectors from a bounded LIFO cache,
// creating a new one whenever the cache is empty; the number created
// is not capped, only the number cached between uses.
type SelectorPool struct {
	lifo *pool.LIFOPool[*blockingSelector]
	cap  int
}

// NewSelectorPool creates a pool that caches at most capacity
// selectors between uses.
func NewSelectorPool(capacity int) *SelectorPool {
	return &SelectorPool{lifo: pool.NewLIFOPool[*blockingSelector](capacity), cap: capacity}
}

// WaitFor blocks the calling goroutine until fd is ready for ops or
// timeout elapses, using a pooled selector for the duration.
func (p *SelectorPool) WaitFor(fd int, ops api.InterestOps, timeout time.Duration) (api.InterestOps, error) {
	sel, ok := p.lifo.Get()
	if !ok {
		var err error
		sel, err = newBlockingSelector()
		if err != nil {
			return 0, err
		}
	}
	ready, err := sel.waitFor(fd, ops, timeout)
	p.lifo.Put(sel)
	return ready, err
}

// Close tears down every selector currently cached. In-flight
// WaitFor calls are unaffected; their selectors go back into the
// cache when the call returns and are not closed by this call.
func (p *SelectorPool) Close() error {
	var first error
	for {
		sel, ok := p.lifo.Get()
		if !ok {
			break
		}
		if err := sel.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
