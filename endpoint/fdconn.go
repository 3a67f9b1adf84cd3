// File: endpoint/fdconn.go
// Author: momentics <momentics@gmail.com>
//
// fdConn adapts a raw non-blocking socket fd to net.Conn so
// crypto/tls.Server (which only speaks net.Conn) can drive the TLS
// handshake over the same fd the Poller and Acceptor manage directly.
// Deadlines are no-ops: timeout accounting is the Poller's job per
// spec §4.2/§5, not crypto/tls's.
package endpoint

import (
	"net"
	"time"

	"github.com/momentics/nio-endpoint/api"
	"golang.org/x/sys/unix"
)

// fdConn drives the handshake's blocking Read/Write calls through the
// same SelectorPool a worker would use for any other blocking I/O
// (spec §4.5), rather than giving TLS its own private wait loop.
type fdConn struct {
	fd         int
	sel        *SelectorPool
	timeout    time.Duration
	localAddr  net.Addr
	remoteAddr net.Addr
}

func (c *fdConn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		if err == unix.EAGAIN {
			if _, werr := c.sel.WaitFor(c.fd, api.OpRead, c.timeout); werr != nil {
				return 0, werr
			}
			continue
		}
		return n, err
	}
}

func (c *fdConn) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(c.fd, p[total:])
		if err == unix.EAGAIN {
			if _, werr := c.sel.WaitFor(c.fd, api.OpWrite, c.timeout); werr != nil {
				return total, werr
			}
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *fdConn) Close() error                       { return unix.Close(c.fd) }
func (c *fdConn) LocalAddr() net.Addr                { return c.localAddr }
func (c *fdConn) RemoteAddr() net.Addr               { return c.remoteAddr }
func (c *fdConn) SetDeadline(t time.Time) error      { return nil }
func (c *fdConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fdConn) SetWriteDeadline(t time.Time) error { return nil }
