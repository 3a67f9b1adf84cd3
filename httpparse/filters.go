// File: httpparse/filters.go
// Author: momentics <momentics@gmail.com>
//
// InputFilter implementations decode the request body according to
// the framing declared by Content-Length or Transfer-Encoding:
// chunked. InputBuffer has filters/lastActiveFilter fields, but they
// are not used: the http1 Processor picks one filter per request and
// reads from it directly.
package httpparse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
)

// InputFilter presents a decoded view of the request body over a raw
// byte source.
type InputFilter interface {
	io.Reader
	// Name identifies the filter for diagnostics ("identity",
	// "chunked", "content-length").
	Name() string
}

// IdentityFilter passes through a fixed number of bytes (no body, or
// a body whose length is otherwise already known and needs no
// framing of its own).
type IdentityFilter struct {
	src       io.Reader
	remaining int64
}

func NewIdentityFilter(src io.Reader, length int64) *IdentityFilter {
	return &IdentityFilter{src: src, remaining: length}
}

func (f *IdentityFilter) Name() string { return "identity" }

func (f *IdentityFilter) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.src.Read(p)
	f.remaining -= int64(n)
	return n, err
}

// ContentLengthFilter is IdentityFilter under a name matching the
// header that drove its construction; the framing is identical.
type ContentLengthFilter = IdentityFilter

// NewContentLengthFilter parses the Content-Length header value and
// builds the corresponding filter.
func NewContentLengthFilter(src io.Reader, headerValue string) (*ContentLengthFilter, error) {
	n, err := strconv.ParseInt(headerValue, 10, 64)
	if err != nil || n < 0 {
		return nil, ErrInvalidHeader
	}
	return NewIdentityFilter(src, n), nil
}

// ChunkedFilter decodes HTTP/1.1 chunked transfer-coding (RFC 7230
// §4.1), including trailer headers, terminating at the zero-length
// chunk.
type ChunkedFilter struct {
	src      *bufio.Reader
	remaining int64
	done      bool
	Trailers  map[string][]string
}

func NewChunkedFilter(src io.Reader) *ChunkedFilter {
	br, ok := src.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(src)
	}
	return &ChunkedFilter{src: br, Trailers: make(map[string][]string)}
}

func (f *ChunkedFilter) Name() string { return "chunked" }

// Buffered reports how many bytes the internal bufio.Reader has
// already pulled from src but not yet handed to Read — bytes that, if
// the filter is done, belong to whatever follows this request on the
// connection rather than to this body.
func (f *ChunkedFilter) Buffered() int { return f.src.Buffered() }

// Peek returns the next n buffered bytes without consuming them; n
// must not exceed Buffered().
func (f *ChunkedFilter) Peek(n int) ([]byte, error) { return f.src.Peek(n) }

func (f *ChunkedFilter) Read(p []byte) (int, error) {
	if f.done {
		return 0, io.EOF
	}
	if f.remaining == 0 {
		if err := f.readChunkHeader(); err != nil {
			return 0, err
		}
		if f.remaining == 0 {
			if err := f.readTrailers(); err != nil {
				return 0, err
			}
			f.done = true
			return 0, io.EOF
		}
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.src.Read(p)
	f.remaining -= int64(n)
	if f.remaining == 0 {
		// Consume the CRLF terminating this chunk's data.
		if _, discardErr := f.src.Discard(2); discardErr != nil && err == nil {
			err = discardErr
		}
	}
	return n, err
}

func (f *ChunkedFilter) readChunkHeader() error {
	line, err := f.src.ReadString('\n')
	if err != nil {
		return err
	}
	line = trimChunkExt(line)
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil || n < 0 {
		return errors.New("httpparse: invalid chunk size")
	}
	f.remaining = n
	return nil
}

func (f *ChunkedFilter) readTrailers() error {
	for {
		line, err := f.src.ReadString('\n')
		if err != nil {
			return err
		}
		trimmed := trimTrailingCRLF([]byte(line))
		if len(trimmed) == 0 {
			return nil
		}
		name, value, ok := splitTrailer(trimmed)
		if ok {
			f.Trailers[name] = append(f.Trailers[name], value)
		}
	}
}

func trimChunkExt(line string) string {
	b := trimTrailingCRLF([]byte(line))
	for i, c := range b {
		if c == ';' {
			return string(b[:i])
		}
	}
	return string(b)
}

func splitTrailer(b []byte) (name, value string, ok bool) {
	for i, c := range b {
		if c == ':' {
			nameBytes := b[:i]
			lowerASCII(nameBytes)
			return string(nameBytes), string(trimTrailingCRLF(bytesTrimLeadingSPHT(b[i+1:]))), true
		}
	}
	return "", "", false
}

func bytesTrimLeadingSPHT(b []byte) []byte {
	i := 0
	for i < len(b) && isSPHT(b[i]) {
		i++
	}
	return b[i:]
}
