// File: http1/body.go
// Author: momentics <momentics@gmail.com>
//
// Wires spec §3/§4.4's input-filter chain into the request cycle:
// picks the Content-Length or chunked Transfer-Encoding framing, reads
// the decoded body into container.Request.Body, and leaves the
// connection positioned at the start of whatever follows — a
// pipelined next request, or nothing — instead of leaving unconsumed
// body bytes to corrupt the next parse.
package http1

import (
	"io"
	"strings"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/endpoint"
	"github.com/momentics/nio-endpoint/httpparse"
)

// maxBufferedBody bounds how large a body this Processor will buffer
// whole into container.Request.Body; larger bodies fail the request
// rather than exhausting memory. Streaming request bodies are out of
// scope (spec §1's servlet-API-surface Non-goal).
const maxBufferedBody = 4 << 20

// connBodySource serves body bytes first out of the InputBuffer's own
// read-ahead buffer (the client may have sent body bytes in the same
// read as the headers), then blocks on the raw connection via the
// Selector Pool — the same wait-then-retry pattern
// ChannelWrapper.WriteAll uses for writes, appropriate here because a
// worker goroutine is allowed to block (spec §5).
type connBodySource struct {
	cw *endpoint.ChannelWrapper
	ib *httpparse.InputBuffer
}

func (s *connBodySource) Read(p []byte) (int, error) {
	if buffered := s.ib.Buffered(); len(buffered) > 0 {
		n := copy(p, buffered)
		s.ib.Advance(n)
		return n, nil
	}
	for {
		n, err := s.cw.ReadInto(p)
		if n > 0 || err != nil {
			return n, err
		}
		if _, err := s.cw.Selector.WaitFor(s.cw.FD, api.OpRead, s.cw.ReadTimeout); err != nil {
			return 0, err
		}
	}
}

// buildBodyFilter inspects the parsed headers and returns the
// InputFilter the request's framing calls for, or nil when there is no
// body (neither Content-Length nor chunked Transfer-Encoding present).
func buildBodyFilter(ib *httpparse.InputBuffer, src io.Reader) (httpparse.InputFilter, error) {
	if strings.Contains(strings.ToLower(ib.HeaderValue("transfer-encoding")), "chunked") {
		return httpparse.NewChunkedFilter(src), nil
	}
	if cl := ib.HeaderValue("content-length"); cl != "" {
		return httpparse.NewContentLengthFilter(src, cl)
	}
	return nil, nil
}

// readBody reads the whole request body (if any) before the handler
// runs, then recovers any bytes the chunked filter's internal
// buffering read ahead past the body's end, so the connection is left
// exactly at the start of the next pipelined request.
func readBody(cw *endpoint.ChannelWrapper, ib *httpparse.InputBuffer) ([]byte, error) {
	src := &connBodySource{cw: cw, ib: ib}
	filter, err := buildBodyFilter(ib, src)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(filter, maxBufferedBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBufferedBody {
		return nil, httpparse.ErrBodyTooLarge
	}

	if cf, ok := filter.(*httpparse.ChunkedFilter); ok {
		if n := cf.Buffered(); n > 0 {
			leftover, _ := cf.Peek(n)
			ib.Unread(leftover)
		}
	}
	return body, nil
}
