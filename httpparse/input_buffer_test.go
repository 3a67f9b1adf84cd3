// File: httpparse/input_buffer_test.go
// Author: momentics <momentics@gmail.com>

package httpparse

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// chunkedSource feeds the request bytes either all at once or one
// byte at a time, depending on chunkSize, to exercise the round-trip
// law from spec §8.
type chunkedSource struct {
	data      []byte
	pos       int
	chunkSize int
}

func (s *chunkedSource) ReadInto(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := s.chunkSize
	if n <= 0 || n > len(p) {
		n = len(p)
	}
	if s.pos+n > len(s.data) {
		n = len(s.data) - s.pos
	}
	copy(p, s.data[s.pos:s.pos+n])
	s.pos += n
	return n, nil
}

func parseFull(t *testing.T, raw string, chunkSize int) *InputBuffer {
	t.Helper()
	ib := NewInputBuffer(&chunkedSource{data: []byte(raw), chunkSize: chunkSize}, 8192)
	for {
		done, err := ib.ParseRequestLine(nil)
		require.NoError(t, err)
		if done {
			break
		}
	}
	for {
		done, err := ib.ParseHeaders()
		require.NoError(t, err)
		if done {
			break
		}
	}
	return ib
}

func TestParseRequestLineSimpleGET(t *testing.T) {
	ib := parseFull(t, "GET /x HTTP/1.1\r\nHost: a\r\n\r\n", 0)
	require.Equal(t, "GET", ib.Method)
	require.Equal(t, "/x", ib.RequestTarget)
	require.Equal(t, "", ib.QueryString)
	require.Equal(t, "HTTP/1.1", ib.Protocol)
	require.Equal(t, "a", ib.HeaderValue("host"))
}

func TestParseRequestLineByteAtATimeMatchesOneShot(t *testing.T) {
	raw := "GET /search?q=go HTTP/1.1\r\nHost: example.com\r\nX-Multi: a\r\n b\r\n\r\n"
	oneShot := parseFull(t, raw, 0)
	bytewise := parseFull(t, raw, 1)

	require.Equal(t, oneShot.Method, bytewise.Method)
	require.Equal(t, oneShot.RequestTarget, bytewise.RequestTarget)
	require.Equal(t, oneShot.QueryString, bytewise.QueryString)
	require.Equal(t, oneShot.Protocol, bytewise.Protocol)
	require.Equal(t, oneShot.Headers, bytewise.Headers)
}

func TestHTTP09RequestLine(t *testing.T) {
	ib := NewInputBuffer(&chunkedSource{data: []byte("GET /y\n")}, 8192)
	done, err := ib.ParseRequestLine(nil)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "GET", ib.Method)
	require.Equal(t, "/y", ib.RequestTarget)
	require.Equal(t, "", ib.Protocol)
}

func TestHTTP2PrefaceDetected(t *testing.T) {
	ib := NewInputBuffer(&chunkedSource{data: []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")}, 8192)
	done, err := ib.ParseRequestLine(nil)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, PhaseHTTP2, ib.Phase())
}

// armedSource delivers one staged chunk per ReadInto call while armed,
// and reports no new bytes otherwise — modeling a non-blocking fill
// that comes up empty between TCP segments of the same preface.
type armedSource struct {
	stages [][]byte
	idx    int
	armed  bool
}

func (s *armedSource) ReadInto(p []byte) (int, error) {
	if !s.armed || s.idx >= len(s.stages) {
		return 0, nil
	}
	n := copy(p, s.stages[s.idx])
	s.idx++
	s.armed = false
	return n, nil
}

func TestHTTP2PrefaceResumesAcrossFillMisses(t *testing.T) {
	full := []byte(http2Preface)
	src := &armedSource{stages: [][]byte{full[:1], full[1:12], full[12:]}}
	ib := NewInputBuffer(src, 8192)

	src.armed = true
	done, err := ib.ParseRequestLine(nil)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, PhaseProbeHTTP2, ib.Phase())

	src.armed = true
	done, err = ib.ParseRequestLine(nil)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, PhaseProbeHTTP2, ib.Phase())

	src.armed = true
	done, err = ib.ParseRequestLine(nil)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, PhaseHTTP2, ib.Phase())
}

func TestHTTP2PrefaceMismatchFallsBackToMethod(t *testing.T) {
	ib := parseFull(t, "PUT / HTTP/1.1\r\nHost: a\r\n\r\n", 0)
	require.Equal(t, "PUT", ib.Method)
	require.Equal(t, "/", ib.RequestTarget)
}

func TestHeaderFolding(t *testing.T) {
	ib := parseFull(t, "GET / HTTP/1.1\r\nX-Multi: a\r\n b\r\n\r\n", 0)
	require.Equal(t, "a b", ib.HeaderValue("x-multi"))
}

func TestHeaderTooLarge(t *testing.T) {
	huge := make([]byte, 8*1024+1)
	for i := range huge {
		huge[i] = 'a'
	}
	raw := "GET / HTTP/1.1\r\nX-Big: " + string(huge)
	ib := NewInputBuffer(&chunkedSource{data: []byte(raw)}, 8*1024)
	_, err := ib.ParseRequestLine(nil)
	require.NoError(t, err)
	_, err = ib.ParseHeaders()
	require.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestInvalidMethodFailsFast(t *testing.T) {
	ib := NewInputBuffer(&chunkedSource{data: []byte("GE\rT / HTTP/1.1\r\n\r\n")}, 8192)
	_, err := ib.ParseRequestLine(nil)
	require.ErrorIs(t, err, ErrInvalidMethod)
}
