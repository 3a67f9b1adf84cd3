// File: endpoint/endpoint.go
// Author: momentics <momentics@gmail.com>
//
// Endpoint is the top-level NIO Endpoint of spec §1/§2: it owns the
// listening socket, the Acceptor, the Poller, the Worker Pool, the
// Selector Pool, and the connection table, and drives them through
// the shared lifecycle state machine (spec §2 item 9).
package endpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/lifecycle"
	"github.com/momentics/nio-endpoint/pool"
)

// ConnMetrics is the narrow slice of control.MetricsRegistry the
// endpoint itself needs; kept as an interface here so endpoint never
// imports the control package.
type ConnMetrics interface {
	ObserveAccepted()
	ObserveClosed()
}

// Endpoint ties the NIO Endpoint's components together and exposes
// the lifecycle contract shared with containers (spec §2 item 9).
type Endpoint struct {
	lifecycle.Base

	cfg      *Config
	log      *zap.Logger
	handler  Handler
	tls      TLSEngine
	selector *SelectorPool

	listenFD int
	acceptor *Acceptor
	poller   *Poller
	worker   *WorkerPool

	conns        sync.Map // fd (int) -> *ChannelWrapper
	channelPool  *pool.LIFOPool[*ChannelWrapper]

	// Metrics is optional; set it before Start to have accept/close
	// events recorded.
	Metrics ConnMetrics

	stopOnce sync.Once
}

// New builds an Endpoint bound to no socket yet; call Bind then
// Start.
func New(cfg Config, handler Handler, log *zap.Logger, tlsEngine TLSEngine) *Endpoint {
	if log == nil {
		log = zap.NewNop()
	}
	c := cfg
	ep := &Endpoint{
		cfg:         &c,
		log:         log,
		handler:     handler,
		tls:         tlsEngine,
		selector:    NewSelectorPool(cfg.ProcessorCache),
		channelPool: pool.NewLIFOPool[*ChannelWrapper](cfg.BufferPoolCache),
		listenFD:    -1,
	}
	_ = ep.SetState(lifecycle.Initialized)
	return ep
}

// Bind creates, configures, and binds the listening socket, or adopts
// a pre-bound inherited fd if inheritedFD >= 0 (spec §6's "adopt a
// pre-bound listening socket from the invoking process").
func (ep *Endpoint) Bind(inheritedFD int) error {
	if inheritedFD >= 0 {
		sockType, err := unix.GetsockoptInt(inheritedFD, unix.SOL_SOCKET, unix.SO_TYPE)
		if err != nil || sockType != unix.SOCK_STREAM {
			return fmt.Errorf("%w: inherited handle is not a listening stream socket", ErrBindFailed)
		}
		ep.listenFD = inheritedFD
		return unix.SetNonblock(ep.listenFD, true)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("%w: socket: %v", ErrBindFailed, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: SO_REUSEADDR: %v", ErrBindFailed, err)
	}
	addr, err := parseIPv4(ep.cfg.Address)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	sa := &unix.SockaddrInet4{Port: ep.cfg.Port, Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: bind: %v", ErrBindFailed, err)
	}
	if err := unix.Listen(fd, ep.cfg.AcceptCount); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: listen: %v", ErrBindFailed, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: set nonblock: %v", ErrBindFailed, err)
	}
	ep.listenFD = fd
	return nil
}

func parseIPv4(addr string) (out [4]byte, err error) {
	if addr == "" || addr == "0.0.0.0" {
		return out, nil
	}
	var a, b, c, d int
	if _, err = fmt.Sscanf(addr, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
		return out, err
	}
	out = [4]byte{byte(a), byte(b), byte(c), byte(d)}
	return out, nil
}

// Start brings the endpoint from INITIALIZED to STARTED: builds the
// Poller, Worker Pool, and Acceptor, and launches their goroutines.
func (ep *Endpoint) Start() error {
	if err := ep.SetState(lifecycle.StartingPrep); err != nil {
		return err
	}
	poller, err := newPoller(ep)
	if err != nil {
		return fmt.Errorf("endpoint: start poller: %w", err)
	}
	ep.poller = poller
	ep.worker = NewWorkerPool(ep.cfg.WorkerThreads)
	ep.acceptor = newAcceptor(ep, ep.listenFD)

	if err := ep.SetState(lifecycle.Starting); err != nil {
		return err
	}
	go ep.poller.Run()
	go ep.acceptor.Run()
	return ep.SetState(lifecycle.Started)
}

// Pause halts new accepts without tearing anything down (spec §8
// scenario 8).
func (ep *Endpoint) Pause() { ep.acceptor.Pause() }

// Resume undoes Pause.
func (ep *Endpoint) Resume() { ep.acceptor.Resume() }

// Stop signals the Acceptor to exit, marks the Poller closed and
// wakes it, waits for workers to drain, and clears the selector and
// channel-wrapper pools (spec §5's stop sequence). Shutdown calls it.
func (ep *Endpoint) Stop(ctx context.Context) error {
	var stopErr error
	ep.stopOnce.Do(func() {
		if err := ep.SetState(lifecycle.StoppingPrep); err != nil {
			stopErr = err
			return
		}
		_ = ep.SetState(lifecycle.Stopping)

		done := make(chan struct{})
		go func() {
			ep.acceptor.Stop()
			ep.poller.destroy()
			ep.worker.Close()
			ep.selector.Close()
			for {
				if _, ok := ep.channelPool.Get(); !ok {
					break
				}
			}
			unix.Close(ep.listenFD)
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}

		ep.conns.Range(func(k, v any) bool {
			v.(*ChannelWrapper).Close()
			ep.conns.Delete(k)
			return true
		})

		_ = ep.SetState(lifecycle.Stopped)
	})
	return stopErr
}

var _ api.GracefulShutdown = (*Endpoint)(nil)

// Shutdown implements api.GracefulShutdown by calling Stop.
func (ep *Endpoint) Shutdown(ctx context.Context) error { return ep.Stop(ctx) }

// acquireChannelWrapper returns a pooled wrapper rebound to fd, or
// allocates a new one.
func (ep *Endpoint) acquireChannelWrapper(fd int) *ChannelWrapper {
	if cw, ok := ep.channelPool.Get(); ok {
		cw.Reset(fd, ep.cfg)
		if ep.cfg.SSLEnabled && ep.tls != nil {
			cw.TLSConn = ep.tls.Server(fd, ep.selector, int64(ep.cfg.ConnectionTimeout))
		}
		return cw
	}
	cw := NewChannelWrapper(ep, fd, ep.cfg)
	if ep.cfg.SSLEnabled && ep.tls != nil {
		cw.TLSConn = ep.tls.Server(fd, ep.selector, int64(ep.cfg.ConnectionTimeout))
	}
	return cw
}

func (ep *Endpoint) releaseChannelWrapper(cw *ChannelWrapper) {
	ep.channelPool.Put(cw)
}

func (ep *Endpoint) registerConn(fd int, cw *ChannelWrapper) {
	ep.conns.Store(fd, cw)
	if ep.Metrics != nil {
		ep.Metrics.ObserveAccepted()
	}
}

func (ep *Endpoint) unregisterConn(fd int) {
	if _, existed := ep.conns.LoadAndDelete(fd); existed && ep.Metrics != nil {
		ep.Metrics.ObserveClosed()
	}
}

// ConnCount reports the number of live connections, for the invariant
// in spec §8 ("semaphore permits + live map size == maxConnections").
func (ep *Endpoint) ConnCount() int {
	n := 0
	ep.conns.Range(func(_, _ any) bool { n++; return true })
	return n
}

// dispatchTask submits a Socket Processor task to the worker pool,
// implementing spec §4.3's procedure.
func (ep *Endpoint) dispatchTask(cw *ChannelWrapper, event api.SocketEvent) {
	err := ep.worker.Submit(func() { ep.processSocket(cw, event) })
	if err != nil {
		ep.poller.cancel(cw)
		cw.Close()
		ep.unregisterConn(cw.FD)
		ep.acceptor.releasePermit()
	}
}

func (ep *Endpoint) processSocket(cw *ChannelWrapper, event api.SocketEvent) {
	if cw.TLSConn != nil && !cw.HandshakeDone() {
		ctx, cancel := context.WithTimeout(context.Background(), cw.ReadTimeout)
		defer cancel()
		if err := cw.Handshake(ctx); err != nil {
			ep.closeConn(cw, api.EventConnectFail)
			return
		}
	}

	state, err := ep.handler.Process(cw, event)
	if err != nil {
		ep.closeConn(cw, api.EventError)
		return
	}

	switch state {
	case api.StateClosed:
		ep.closeConn(cw, api.EventDisconnect)
	case api.StateOpen:
		ep.poller.events.Push(PollerEvent{Wrapper: cw, Ops: api.OpRead})
	case api.StateSendfile:
		ep.poller.events.Push(PollerEvent{Wrapper: cw, Ops: api.OpWrite})
	case api.StateLong, api.StateAsyncEnd, api.StateUpgraded, api.StateUpgrading, api.StateSuspended:
		// Deregistered until the protocol re-arms interest itself.
	}
}

func (ep *Endpoint) closeConn(cw *ChannelWrapper, _ api.SocketEvent) {
	ep.poller.cancel(cw)
	cw.Close()
	ep.unregisterConn(cw.FD)
	ep.acceptor.releasePermit()
	ep.releaseChannelWrapper(cw)
}

// Now reports wall-clock time (time.Now) for timestamp bookkeeping.
func Now() time.Time { return time.Now() }
