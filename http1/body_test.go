// File: http1/body_test.go
// Author: momentics <momentics@gmail.com>

package http1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/container"
)

func buildEchoBodyEngine() *container.Engine {
	e := container.NewEngine("engine", 0)
	e.DefaultHost = "example.com"
	host := container.NewHost("example.com", 0)
	ctx := container.NewContext("root", 0)
	wrapper := container.NewWrapper("echo", func(_ context.Context, req *container.Request, resp *container.Response) error {
		resp.Status = 200
		resp.Body = req.Body
		return nil
	}, 0)
	ctx.Mappings["/x"] = "echo"
	_ = ctx.AddChild("echo", wrapper)
	_ = host.AddChild("/", ctx)
	_ = e.AddChild("example.com", host)
	return e
}

func TestProcessorReadsContentLengthBody(t *testing.T) {
	cw, peerFD := newSocketpairWrapper(t)
	defer cw.Close()

	req := "POST /x HTTP/1.1\r\nHost: example.com\r\nContent-Length: 11\r\n\r\nhello world"
	_, err := unix.Write(peerFD, []byte(req))
	require.NoError(t, err)

	proc := &Processor{Engine: buildEchoBodyEngine()}
	state, err := proc.Process(cw, api.EventOpenRead)
	require.NoError(t, err)
	require.Equal(t, api.StateOpen, state)

	buf := make([]byte, 4096)
	n, err := unix.Read(peerFD, buf)
	require.NoError(t, err)
	resp := string(buf[:n])
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "hello world")
}

func TestProcessorReadsChunkedBody(t *testing.T) {
	cw, peerFD := newSocketpairWrapper(t)
	defer cw.Close()

	req := "POST /x HTTP/1.1\r\nHost: example.com\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	_, err := unix.Write(peerFD, []byte(req))
	require.NoError(t, err)

	proc := &Processor{Engine: buildEchoBodyEngine()}
	state, err := proc.Process(cw, api.EventOpenRead)
	require.NoError(t, err)
	require.Equal(t, api.StateOpen, state)

	buf := make([]byte, 4096)
	n, err := unix.Read(peerFD, buf)
	require.NoError(t, err)
	resp := string(buf[:n])
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "hello world")
}

// TestProcessorBodyDoesNotCorruptPipelinedRequest is the regression
// test for the bug this file fixes: a POST with Content-Length on a
// keep-alive connection used to leave its body bytes unconsumed,
// so the next pipelined request's parse started mid-body instead of
// at its own request line.
func TestProcessorBodyDoesNotCorruptPipelinedRequest(t *testing.T) {
	cw, peerFD := newSocketpairWrapper(t)
	defer cw.Close()

	first := "POST /x HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"
	second := "GET /x HTTP/1.1\r\nHost: example.com\r\n\r\n"
	_, err := unix.Write(peerFD, []byte(first+second))
	require.NoError(t, err)

	proc := &Processor{Engine: buildEchoBodyEngine()}

	state, err := proc.Process(cw, api.EventOpenRead)
	require.NoError(t, err)
	require.Equal(t, api.StateOpen, state)

	buf := make([]byte, 4096)
	n, err := unix.Read(peerFD, buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "hello")

	state, err = proc.Process(cw, api.EventOpenRead)
	require.NoError(t, err)
	require.Equal(t, api.StateOpen, state)

	n, err = unix.Read(peerFD, buf)
	require.NoError(t, err)
	resp := string(buf[:n])
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.NotContains(t, resp, "Bad Request")
}
