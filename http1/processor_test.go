// File: http1/processor_test.go
// Author: momentics <momentics@gmail.com>

package http1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/container"
	"github.com/momentics/nio-endpoint/endpoint"
)

func newSocketpairWrapper(t *testing.T) (*endpoint.ChannelWrapper, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))

	cfg := endpoint.DefaultConfig()
	ep := endpoint.New(cfg, nil, nil, nil)
	cw := endpoint.NewChannelWrapper(ep, fds[0], &cfg)
	t.Cleanup(func() { unix.Close(fds[1]) })
	return cw, fds[1]
}

func buildTestEngine(body string) *container.Engine {
	e := container.NewEngine("engine", 0)
	e.DefaultHost = "example.com"
	host := container.NewHost("example.com", 0)
	ctx := container.NewContext("root", 0)
	wrapper := container.NewWrapper("echo", func(_ context.Context, req *container.Request, resp *container.Response) error {
		resp.Status = 200
		resp.Body = []byte(body)
		return nil
	}, 0)
	ctx.Mappings["/x"] = "echo"
	_ = ctx.AddChild("echo", wrapper)
	_ = host.AddChild("/", ctx)
	_ = e.AddChild("example.com", host)
	return e
}

func TestProcessorSimpleGET(t *testing.T) {
	cw, peerFD := newSocketpairWrapper(t)
	defer cw.Close()

	n, err := unix.Write(peerFD, []byte("GET /x HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)
	require.Greater(t, n, 0)

	proc := &Processor{Engine: buildTestEngine("hello")}
	state, err := proc.Process(cw, api.EventOpenRead)
	require.NoError(t, err)
	require.Equal(t, api.StateOpen, state)

	buf := make([]byte, 4096)
	n, err = unix.Read(peerFD, buf)
	require.NoError(t, err)
	resp := string(buf[:n])
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "hello")
}

func TestProcessorNotFound(t *testing.T) {
	cw, peerFD := newSocketpairWrapper(t)
	defer cw.Close()

	_, err := unix.Write(peerFD, []byte("GET /missing HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	proc := &Processor{Engine: buildTestEngine("hello")}
	state, err := proc.Process(cw, api.EventOpenRead)
	require.NoError(t, err)
	require.Equal(t, api.StateOpen, state)

	buf := make([]byte, 4096)
	n, err := unix.Read(peerFD, buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "HTTP/1.1 404")
}
