// File: httpparse/filters_test.go
// Author: momentics <momentics@gmail.com>

package httpparse

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityFilterStopsAtLength(t *testing.T) {
	src := bytes.NewReader([]byte("hello world, trailing bytes not part of the body"))
	f := NewIdentityFilter(src, 11)

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(body))

	// the underlying reader still has the trailing bytes untouched
	rest, _ := io.ReadAll(src)
	require.Equal(t, ", trailing bytes not part of the body", string(rest))
}

func TestNewContentLengthFilterRejectsInvalidHeader(t *testing.T) {
	_, err := NewContentLengthFilter(bytes.NewReader(nil), "not-a-number")
	require.ErrorIs(t, err, ErrInvalidHeader)

	_, err = NewContentLengthFilter(bytes.NewReader(nil), "-1")
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestChunkedFilterDecodesBody(t *testing.T) {
	raw := "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	f := NewChunkedFilter(bytes.NewReader([]byte(raw)))

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(body))
}

func TestChunkedFilterCollectsTrailers(t *testing.T) {
	raw := "5\r\nhello\r\n0\r\nX-Checksum: abc123\r\n\r\n"
	f := NewChunkedFilter(bytes.NewReader([]byte(raw)))

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
	require.Equal(t, []string{"abc123"}, f.Trailers["x-checksum"])
}

func TestChunkedFilterLeavesTrailingBytesBuffered(t *testing.T) {
	raw := "5\r\nhello\r\n0\r\n\r\nGET /next HTTP/1.1\r\n"
	br := bytes.NewReader([]byte(raw))
	f := NewChunkedFilter(br)

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))

	n := f.Buffered()
	require.Greater(t, n, 0)
	leftover, err := f.Peek(n)
	require.NoError(t, err)
	require.Equal(t, "GET /next HTTP/1.1\r\n", string(leftover))
}

func TestChunkedFilterRejectsInvalidChunkSize(t *testing.T) {
	f := NewChunkedFilter(bytes.NewReader([]byte("zz\r\n")))
	_, err := io.ReadAll(f)
	require.Error(t, err)
}
