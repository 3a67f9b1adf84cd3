// File: endpoint/sendfile_linux.go
// Author: momentics <momentics@gmail.com>
//
// processSendfile implements spec §4.6's zero-copy file transfer path
// using Linux sendfile(2) via golang.org/x/sys/unix, falling back to
// a buffered copy when the connection is TLS (the kernel cannot copy
// straight into an encrypted stream).
package endpoint

import (
	"io"
	"os"

	"github.com/momentics/nio-endpoint/api"
	"golang.org/x/sys/unix"
)

func (p *Poller) processSendfile(cw *ChannelWrapper) {
	sf := cw.Sendfile
	var n int64
	var err error
	if cw.TLSConn != nil {
		n, err = sendfileTLS(cw, sf)
	} else {
		off := sf.Offset
		n, err = unix.Sendfile(cw.FD, sf.FileFD, &off, int(sf.Length))
		sf.Offset = off
	}
	if err != nil && err != unix.EAGAIN {
		p.cancel(cw)
		cw.Close()
		p.ep.acceptor.releasePermit()
		return
	}
	sf.Length -= n
	if sf.Length > 0 {
		cw.AddInterestOps(api.OpWrite)
		p.rearm(cw)
		return
	}

	cw.Sendfile = nil
	unix.Close(sf.FileFD)
	switch sf.KeepAlive {
	case api.KeepAliveNone:
		p.cancel(cw)
		cw.Close()
		p.ep.acceptor.releasePermit()
	case api.KeepAlivePipelined:
		p.ep.dispatchTask(cw, api.EventOpenRead)
	case api.KeepAliveOpen:
		cw.AddInterestOps(api.OpRead)
		p.rearm(cw)
	}
}

// sendfileTLS copies the remaining file bytes through the TLS
// connection; TLS termination precludes true zero-copy (spec §4.6).
func sendfileTLS(cw *ChannelWrapper, sf *SendfileState) (int64, error) {
	f := os.NewFile(uintptr(sf.FileFD), "sendfile")
	if _, err := f.Seek(sf.Offset, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.CopyN(cw.TLSConn, f, sf.Length)
	sf.Offset += n
	return n, err
}
