// File: endpoint/poller.go
// Author: momentics <momentics@gmail.com>
//
// Poller implements spec §4.2: one goroutine owning one epoll
// instance, draining an MPSC events queue, driving epoll_wait, and
// dispatching ready sockets to the worker pool. Grounded on
// reactor.epollReactor (reactor/epoll_reactor.go) and
// internal/concurrency/poller_linux.go, generalized with the
// wake-up-counter protocol and timeout sweep the spec requires but
// the teacher's reactor does not implement.
package endpoint

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/pool"
)

const maxPollerEvents = 256

// blocked is the sentinel the wake-up counter is swapped to right
// before the Poller enters epoll_wait, per spec §4.2.
const blocked = -1

// Poller owns exactly one epoll fd. Its own goroutine does every
// EpollWait and every add/modify EpollCtl; cancel (EPOLL_CTL_DEL) is
// also called from worker goroutines when they close a connection.
type Poller struct {
	ep   *Endpoint
	epfd int

	events *pool.EventQueue[PollerEvent]
	wake   atomic.Int32

	registered sync.Map // fd (int) -> *ChannelWrapper, mirrors the epoll registration set

	selectorTimeout time.Duration
	nextExpiration  atomic.Int64 // UnixNano

	closeFlag atomic.Bool
	wakeFD    int // eventfd used to interrupt a blocked epoll_wait

	stopped chan struct{}
	log     *zap.Logger
}

func newPoller(ep *Endpoint) (*Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p := &Poller{
		ep:              ep,
		epfd:            epfd,
		events:          pool.NewEventQueue[PollerEvent](),
		selectorTimeout: ep.cfg.SelectorTimeout,
		wakeFD:          wakeFD,
		stopped:         make(chan struct{}),
		log:             ep.log.Named("poller"),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(p.wakeFD)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, p.wakeFD, &ev); err != nil {
		unix.Close(epfd)
		unix.Close(p.wakeFD)
		return nil, err
	}
	return p, nil
}

// wakeSelector writes to the eventfd, unblocking a concurrent
// epoll_wait.
func (p *Poller) wakeSelector() {
	buf := [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	unix.Write(p.wakeFD, buf[:])
}

func (p *Poller) drainWakeFD() {
	var buf [8]byte
	unix.Read(p.wakeFD, buf[:])
}

// signalWork implements the producer side of spec §4.2's wake-up
// protocol: increment, and if the prior value was `blocked`, wake the
// selector.
func (p *Poller) signalWork() {
	prev := p.wake.Add(1) - 1
	if prev == blocked {
		p.wakeSelector()
	}
}

// Run is the Poller's main loop; returns once destroy() has been
// called and the loop has drained.
func (p *Poller) Run() {
	pinPollerThread(p.ep.cfg.PollerCPUAffinity)
	defer close(p.stopped)
	events := make([]unix.EpollEvent, maxPollerEvents)
	for {
		p.drainEvents()

		if p.closeFlag.Load() {
			return
		}

		prev := p.wake.Swap(blocked)
		timeoutMs := int(p.selectorTimeout.Milliseconds())
		if prev > 0 {
			timeoutMs = 0 // other work is pending: selectNow()
		}
		n, err := unix.EpollWait(p.epfd, events, timeoutMs)
		p.wake.Store(0)
		if err != nil && err != unix.EINTR {
			p.log.Warn("epoll_wait failed", zap.Error(err))
			continue
		}

		hadEvents := n > 0
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wakeFD {
				p.drainWakeFD()
				continue
			}
			val, ok := p.registered.Load(fd)
			if !ok {
				continue
			}
			cw := val.(*ChannelWrapper)
			p.processKey(cw, events[i].Events)
		}

		p.timeout(n, hadEvents)

		if p.closeFlag.Load() {
			p.drainEvents()
			return
		}
	}
}

func (p *Poller) drainEvents() {
	for {
		pe, ok := p.events.TryPop()
		if !ok {
			return
		}
		if pe.Register {
			p.register(pe.Wrapper, api.OpRead)
			continue
		}
		val, ok := p.registered.Load(pe.Wrapper.FD)
		if !ok {
			pe.Wrapper.Close()
			p.ep.acceptor.releasePermit()
			continue
		}
		cw := val.(*ChannelWrapper)
		cw.AddInterestOps(pe.Ops)
		p.rearm(cw)
	}
}

func (p *Poller) register(cw *ChannelWrapper, ops api.InterestOps) {
	cw.SetInterestOps(ops)
	p.registered.Store(cw.FD, cw)
	ev := unix.EpollEvent{Events: toEpollEvents(ops), Fd: int32(cw.FD)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, cw.FD, &ev); err != nil {
		p.registered.Delete(cw.FD)
		cw.Close()
		p.ep.acceptor.releasePermit()
	}
}

func (p *Poller) rearm(cw *ChannelWrapper) {
	ev := unix.EpollEvent{Events: toEpollEvents(cw.InterestOps()), Fd: int32(cw.FD)}
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, cw.FD, &ev)
}

func toEpollEvents(ops api.InterestOps) uint32 {
	var e uint32
	if ops.Has(api.OpRead) {
		e |= unix.EPOLLIN
	}
	if ops.Has(api.OpWrite) {
		e |= unix.EPOLLOUT
	}
	return e
}

// processKey implements spec §4.2's processKey: clear ready ops from
// interest so the worker owns them, then dispatch.
func (p *Poller) processKey(cw *ChannelWrapper, readyEpollOps uint32) {
	if readyEpollOps&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		p.cancel(cw)
		p.ep.dispatchTask(cw, api.EventError)
		return
	}
	if cw.Sendfile != nil {
		p.processSendfile(cw)
		return
	}
	var ready api.InterestOps
	if readyEpollOps&unix.EPOLLIN != 0 {
		ready |= api.OpRead
	}
	if readyEpollOps&unix.EPOLLOUT != 0 {
		ready |= api.OpWrite
	}
	cw.ClearInterestOps(ready)
	p.rearm(cw)

	if ready.Has(api.OpRead) {
		p.ep.dispatchTask(cw, api.EventOpenRead)
	}
	if ready.Has(api.OpWrite) {
		p.ep.dispatchTask(cw, api.EventOpenWrite)
	}
}

// cancel removes cw from the epoll set. The attachment is cleared
// before Close to avoid the concurrent-close deadlock spec §4.2 warns
// about.
func (p *Poller) cancel(cw *ChannelWrapper) {
	p.registered.Delete(cw.FD)
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, cw.FD, nil)
}

// timeout implements spec §4.2's throttled sweep, snapshotting the
// registered set before iterating so concurrent cancellation never
// corrupts the walk (the resolved open question from spec §9).
func (p *Poller) timeout(keyCount int, hadEvents bool) {
	now := time.Now()
	next := p.nextExpiration.Load()
	due := next == 0 || now.UnixNano() >= next || (keyCount == 0 && !hadEvents) || p.closeFlag.Load()
	if !due {
		return
	}
	p.nextExpiration.Store(now.Add(p.selectorTimeout).UnixNano())

	type snap struct {
		fd int
		cw *ChannelWrapper
	}
	var snapshot []snap
	p.registered.Range(func(k, v any) bool {
		snapshot = append(snapshot, snap{fd: k.(int), cw: v.(*ChannelWrapper)})
		return true
	})

	for _, s := range snapshot {
		ops := s.cw.InterestOps()
		if ops.Has(api.OpRead) {
			if now.Sub(s.cw.LastRead()) > s.cw.ReadTimeout {
				p.timeoutWrapper(s.cw)
				continue
			}
		}
		if ops.Has(api.OpWrite) {
			if now.Sub(s.cw.LastWrite()) > s.cw.WriteTimeout {
				p.timeoutWrapper(s.cw)
			}
		}
	}
}

func (p *Poller) timeoutWrapper(cw *ChannelWrapper) {
	cw.Err = ErrSocketTimeout
	cw.SetInterestOps(0)
	if tm, ok := p.ep.Metrics.(interface{ ObserveTimeout() }); ok && tm != nil {
		tm.ObserveTimeout()
	}
	if err := p.ep.worker.Submit(func() { p.ep.dispatchTask(cw, api.EventTimeout) }); err != nil {
		p.cancel(cw)
		cw.Close()
		p.ep.acceptor.releasePermit()
	}
}

// destroy stops the loop and tears down the epoll instance. Called
// from Endpoint.Stop.
func (p *Poller) destroy() {
	p.closeFlag.Store(true)
	p.wakeSelector()
	<-p.stopped
	unix.Close(p.wakeFD)
	unix.Close(p.epfd)
}
