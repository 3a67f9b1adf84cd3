// File: http1/processor.go
// Author: momentics <momentics@gmail.com>

package http1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/container"
	"github.com/momentics/nio-endpoint/control"
	"github.com/momentics/nio-endpoint/endpoint"
	"github.com/momentics/nio-endpoint/httpparse"
)

// Processor implements endpoint.Handler, running the HTTP/1.1
// request/response cycle spec §4.3 describes for the Socket
// Processor's step 2.
type Processor struct {
	Engine              *container.Engine
	MaxHTTPHeaderSize   int
	RejectIllegalHeader bool
	Log                 *zap.Logger

	// Metrics is optional; when set, every completed request and parse
	// failure is recorded against it.
	Metrics *control.MetricsRegistry
}

var _ endpoint.Handler = (*Processor)(nil)

// connState is the per-connection scratch space stashed in
// ChannelWrapper.ProcessorState between OpenRead dispatches.
type connState struct {
	ib        *httpparse.InputBuffer
	keepAlive bool
}

func (p *Processor) stateFor(cw *endpoint.ChannelWrapper) *connState {
	if cw.ProcessorState == nil {
		ib := httpparse.NewInputBuffer(cw, p.maxHeaderSize())
		ib.RejectIllegalHeader = p.RejectIllegalHeader
		cw.ProcessorState = &connState{ib: ib}
	}
	return cw.ProcessorState.(*connState)
}

func (p *Processor) maxHeaderSize() int {
	if p.MaxHTTPHeaderSize > 0 {
		return p.MaxHTTPHeaderSize
	}
	return 8 * 1024
}

// Process implements endpoint.Handler.
func (p *Processor) Process(cw *endpoint.ChannelWrapper, event api.SocketEvent) (api.SocketState, error) {
	switch event {
	case api.EventTimeout, api.EventError, api.EventDisconnect, api.EventStop, api.EventConnectFail:
		return api.StateClosed, nil
	case api.EventOpenWrite:
		// Responses are written synchronously within OpenRead via
		// ChannelWrapper.WriteAll, which blocks on the Selector Pool
		// rather than relying on a second OpenWrite dispatch; nothing
		// to do here beyond leaving the connection readable.
		return api.StateOpen, nil
	case api.EventOpenRead:
		return p.processRead(cw)
	default:
		return api.StateClosed, nil
	}
}

func (p *Processor) processRead(cw *endpoint.ChannelWrapper) (api.SocketState, error) {
	st := p.stateFor(cw)

	done, err := st.ib.ParseRequestLine(nil)
	if err != nil {
		return p.failParse(cw, err)
	}
	if !done {
		if st.ib.Phase() == httpparse.PhaseHTTP2 {
			p.logf("http/2 preface seen, closing (preface recognition only, spec non-goal)")
			return api.StateClosed, nil
		}
		return api.StateLong, nil
	}

	done, err = st.ib.ParseHeaders()
	if err != nil {
		return p.failParse(cw, err)
	}
	if !done {
		return api.StateLong, nil
	}

	body, err := readBody(cw, st.ib)
	if err != nil {
		return p.failParse(cw, err)
	}

	req := p.buildRequest(cw, st.ib)
	req.Body = body
	resp := &container.Response{Headers: make(map[string][]string)}

	dispatchErr := p.Engine.Pipeline().Invoke(context.Background(), req, resp)
	if dispatchErr != nil {
		if errors.Is(dispatchErr, container.ErrNoMatchingChild) {
			resp.Status = 404
			resp.Body = []byte("not found")
		} else {
			resp.Status = 500
			resp.Body = []byte("internal error")
		}
	}
	if resp.Status == 0 {
		resp.Status = 200
	}

	p.observeRequest(resp.Status)
	keepAlive := p.decideKeepAlive(cw, req, resp)
	if err := p.writeResponse(cw, resp, keepAlive); err != nil {
		return api.StateClosed, nil
	}

	if !keepAlive || cw.KeepAliveLeft == 0 {
		return api.StateClosed, nil
	}
	cw.NextRequest()
	st.ib.Recycle()
	return api.StateOpen, nil
}

func (p *Processor) failParse(cw *endpoint.ChannelWrapper, err error) (api.SocketState, error) {
	if errors.Is(err, httpparse.ErrEOF) || errors.Is(err, io.EOF) {
		return api.StateClosed, nil
	}
	p.logf("parse error: %v", err)
	if p.Metrics != nil {
		p.Metrics.ObserveParseError(parseErrorKind(err))
	}
	resp := &container.Response{Status: 400, Body: []byte("bad request")}
	_ = p.writeResponse(cw, resp, false)
	return api.StateClosed, nil
}

func (p *Processor) observeRequest(status int) {
	if p.Metrics == nil {
		return
	}
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	p.Metrics.ObserveRequest(class)
}

func parseErrorKind(err error) string {
	switch {
	case errors.Is(err, httpparse.ErrInvalidMethod):
		return "invalid-method"
	case errors.Is(err, httpparse.ErrInvalidRequestTarget):
		return "invalid-target"
	case errors.Is(err, httpparse.ErrInvalidProtocol):
		return "invalid-protocol"
	case errors.Is(err, httpparse.ErrHeaderTooLarge):
		return "header-too-large"
	case errors.Is(err, httpparse.ErrInvalidHeader):
		return "invalid-header"
	case errors.Is(err, httpparse.ErrBodyTooLarge):
		return "body-too-large"
	default:
		return "other"
	}
}

func (p *Processor) buildRequest(cw *endpoint.ChannelWrapper, ib *httpparse.InputBuffer) *container.Request {
	return &container.Request{
		ID:          uuid.NewString(),
		Method:      ib.Method,
		URI:         ib.RequestTarget,
		QueryString: ib.QueryString,
		Protocol:    ib.Protocol,
		Headers:     ib.Headers,
		Host:        ib.HeaderValue("host"),
		Attributes:  make(map[string]any),
	}
}

func (p *Processor) decideKeepAlive(cw *endpoint.ChannelWrapper, req *container.Request, resp *container.Response) bool {
	conn := strings.ToLower(req.Header("connection"))
	switch {
	case conn == "close":
		return false
	case conn == "keep-alive":
		return true
	case req.Protocol == "HTTP/1.1":
		return true // default keep-alive for HTTP/1.1, spec §8 scenario 1
	default:
		return false
	}
}

func (p *Processor) writeResponse(cw *endpoint.ChannelWrapper, resp *container.Response, keepAlive bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", resp.Status, statusText(resp.Status))
	if _, ok := resp.Headers["content-length"]; !ok {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(resp.Body))
	}
	if keepAlive {
		b.WriteString("Connection: keep-alive\r\n")
	} else {
		b.WriteString("Connection: close\r\n")
	}
	for name, values := range resp.Headers {
		for _, v := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}
	b.WriteString("\r\n")

	if err := cw.WriteAll([]byte(b.String())); err != nil && err != io.EOF {
		return err
	}
	if len(resp.Body) > 0 {
		if err := cw.WriteAll(resp.Body); err != nil && err != io.EOF {
			return err
		}
	}
	resp.Commit()
	return nil
}

func (p *Processor) logf(format string, args ...any) {
	if p.Log == nil {
		return
	}
	p.Log.Sugar().Debugf(format, args...)
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return strconv.Itoa(code)
	}
}
