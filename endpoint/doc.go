// File: endpoint/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package endpoint implements the NIO Endpoint of spec §2/§4: the
// Acceptor, Poller, Worker Pool, Selector Pool, and the Channel
// Wrapper they all share. The epoll plumbing is grounded on the
// teacher's reactor.epollReactor (reactor/epoll_reactor.go) and
// internal/concurrency/poller_linux.go, generalized from a WebSocket
// frame reactor into the connection-count-gated, timeout-sweeping
// Poller the spec describes, and driven with raw golang.org/x/sys/unix
// syscalls instead of net.Listener so the Acceptor/Poller/Worker
// split is the one actually doing the I/O multiplexing, not Go's
// runtime netpoller hiding behind it.
package endpoint
