// File: endpoint/tls.go
// Author: momentics <momentics@gmail.com>
//
// TLSEngine orchestrates the server-side handshake for a Channel
// Wrapper (spec §4.3 step 1). Adapted from bassosimone-nop's
// TLSEngine/TLSConn abstraction (_examples/bassosimone-nop/tls.go),
// which wraps tls.Client for an HTTP client; here the same shape
// wraps tls.Server, since the endpoint is always the TLS server.
package endpoint

import (
	"context"
	"crypto/tls"
)

// TLSEngine produces a server-side TLS connection over a raw fd.
type TLSEngine interface {
	Server(fd int, sel *SelectorPool, timeout int64) *tls.Conn
}

type stdTLSEngine struct {
	config *tls.Config
}

// NewTLSEngine builds a TLSEngine from the endpoint's SSL
// configuration knobs (keystore file/password, protocols, client
// auth) already resolved into a *tls.Config by the caller.
func NewTLSEngine(config *tls.Config) TLSEngine {
	return &stdTLSEngine{config: config}
}

func (e *stdTLSEngine) Server(fd int, sel *SelectorPool, timeoutNanos int64) *tls.Conn {
	conn := &fdConn{fd: fd, sel: sel, timeout: nsToDuration(timeoutNanos)}
	return tls.Server(conn, e.config)
}

// Handshake drives cw.TLSConn's handshake to completion or failure.
// It is called from a worker goroutine and is allowed to block
// (via the Selector Pool) per spec §4.3: "drive handshake reads/
// writes through the TLS engine."
func (cw *ChannelWrapper) Handshake(ctx context.Context) error {
	if cw.TLSConn == nil {
		cw.handshakeDone = true
		return nil
	}
	err := cw.TLSConn.HandshakeContext(ctx)
	if err == nil {
		cw.handshakeDone = true
	}
	return err
}

func (cw *ChannelWrapper) HandshakeDone() bool { return cw.handshakeDone }
