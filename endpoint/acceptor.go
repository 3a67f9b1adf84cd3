// File: endpoint/acceptor.go
// Author: momentics <momentics@gmail.com>
//
// Acceptor implements spec §4.1: one goroutine blocking on accept,
// gated by a connection-count semaphore, handing each accepted
// connection to the Poller as a REGISTER event.
package endpoint

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/nio-endpoint/api"
)

// Acceptor owns the listening socket and the admission-control
// semaphore named in spec §4.1 and §5.
type Acceptor struct {
	ep       *Endpoint
	listenFD int

	permits chan struct{} // buffered to maxConnections; acquire = receive, release = send

	pauseMu   sync.Mutex
	pauseCond *sync.Cond
	paused    bool

	stopCh chan struct{}
	doneCh chan struct{}

	log *zap.Logger
}

func newAcceptor(ep *Endpoint, listenFD int) *Acceptor {
	a := &Acceptor{
		ep:       ep,
		listenFD: listenFD,
		permits:  make(chan struct{}, ep.cfg.MaxConnections),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      ep.log.Named("acceptor"),
	}
	a.pauseCond = sync.NewCond(&a.pauseMu)
	for i := 0; i < ep.cfg.MaxConnections; i++ {
		a.permits <- struct{}{}
	}
	return a
}

// Pause blocks future accepts until Resume is called (spec §8
// scenario 8).
func (a *Acceptor) Pause() {
	a.pauseMu.Lock()
	a.paused = true
	a.pauseMu.Unlock()
}

func (a *Acceptor) Resume() {
	a.pauseMu.Lock()
	a.paused = false
	a.pauseCond.Broadcast()
	a.pauseMu.Unlock()
}

func (a *Acceptor) waitIfPaused() {
	a.pauseMu.Lock()
	for a.paused {
		a.pauseCond.Wait()
	}
	a.pauseMu.Unlock()
}

// Run is the Acceptor's main loop; it returns when Stop is called.
func (a *Acceptor) Run() {
	defer close(a.doneCh)
	for {
		select {
		case <-a.stopCh:
			return
		default:
		}
		a.waitIfPaused()

		select {
		case <-a.stopCh:
			return
		case <-a.permits:
		}

		nfd, _, err := unix.Accept(a.listenFD)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				a.permits <- struct{}{}
				if t := a.ep.cfg.SelectorTimeout; err == unix.EAGAIN && t > 0 {
					// The listen fd is non-blocking: wait (bounded, so Stop
					// is noticed) until a connection is pending.
					_, _ = a.ep.selector.WaitFor(a.listenFD, api.OpRead, t)
				}
				continue
			}
			a.log.Warn("accept failed", zap.Error(err))
			a.permits <- struct{}{}
			continue
		}

		if err := configureAcceptedSocket(nfd, a.ep.cfg); err != nil {
			a.log.Warn("configure accepted socket failed", zap.Error(err))
			unix.Close(nfd)
			a.permits <- struct{}{}
			continue
		}

		cw := a.ep.acquireChannelWrapper(nfd)
		a.ep.registerConn(nfd, cw)
		a.ep.poller.events.Push(PollerEvent{Wrapper: cw, Register: true})
	}
}

// Stop signals the acceptor to exit, wakes it if it is paused, and
// waits for Run to return.
func (a *Acceptor) Stop() {
	close(a.stopCh)
	a.Resume()
	<-a.doneCh
}

// releasePermit restores one admission slot; called when a connection
// is closed anywhere in the endpoint (spec §8's semaphore + live-map
// invariant).
func (a *Acceptor) releasePermit() {
	select {
	case a.permits <- struct{}{}:
	default:
		// Pool already full; should not happen if accounting is
		// correct, but never block a closing connection on it.
	}
}

func configureAcceptedSocket(fd int, cfg *Config) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set nonblock: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	if cfg.AppReadBufSize > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.AppReadBufSize)
	}
	if cfg.AppWriteBufSize > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.AppWriteBufSize)
	}
	return nil
}
