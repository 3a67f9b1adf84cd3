// File: httpparse/headers.go
// Author: momentics <momentics@gmail.com>

package httpparse

import "bytes"

// headerResult is the outcome of one ParseHeader call.
type headerResult int

const (
	headerNeedMoreData headerResult = iota
	headerDone
	headerHaveMore
)

// ParseHeaders repeatedly calls ParseHeader until the blank line
// terminating the header block is seen (DONE) or more bytes are
// needed. Returns (true, nil) once the header block is complete.
func (ib *InputBuffer) ParseHeaders() (bool, error) {
	if !ib.parsingHeader {
		return true, nil
	}
	for {
		res, err := ib.parseHeader()
		if err != nil {
			return false, err
		}
		switch res {
		case headerNeedMoreData:
			return false, nil
		case headerDone:
			ib.parsingHeader = false
			// Body, if any, starts at ib.pos; bytes already read past it
			// stay in buf[pos:end] for Buffered().
			return true, nil
		case headerHaveMore:
			continue
		}
	}
}

// parseHeader drives the header-name/value sub-state machine of spec
// §4.4 by one logical header (or the terminating blank line).
func (ib *InputBuffer) parseHeader() (headerResult, error) {
	if ib.headerState == HeaderStart {
		ib.hd = headerData{lineStart: ib.pos}
	}
	for {
		switch ib.headerState {
		case HeaderStart:
			b, ok, err := ib.nextByte()
			if err != nil {
				return headerNeedMoreData, err
			}
			if !ok {
				return headerNeedMoreData, nil
			}
			if b == '\r' {
				continue
			}
			if b == '\n' {
				return headerDone, nil
			}
			ib.hd.start = ib.pos - 1
			ib.hd.realPos = ib.hd.start
			ib.pos--
			ib.headerState = HeaderName
		case HeaderName:
			b, ok, err := ib.nextByte()
			if err != nil {
				return headerNeedMoreData, err
			}
			if !ok {
				return headerNeedMoreData, nil
			}
			if b == ':' {
				name := ib.buf[ib.hd.start : ib.pos-1]
				lowerASCII(name)
				ib.hd.name = string(name)
				// The value is compacted in place starting right after
				// the colon, so folded continuation lines append to it.
				ib.hd.start = ib.pos
				ib.hd.realPos = ib.pos
				ib.hd.lastSignificantChar = ib.pos
				ib.headerState = HeaderValueStart
				continue
			}
			if !isToken(b) {
				if ib.RejectIllegalHeader {
					return headerNeedMoreData, ErrInvalidHeader
				}
				ib.headerState = HeaderSkipLine
				continue
			}
			if b >= 'A' && b <= 'Z' {
				ib.buf[ib.pos-1] = b + ('a' - 'A')
			}
		case HeaderValueStart:
			b, ok, err := ib.nextByte()
			if err != nil {
				return headerNeedMoreData, err
			}
			if !ok {
				return headerNeedMoreData, nil
			}
			if isSPHT(b) {
				continue
			}
			if b == '\r' || b == '\n' {
				// Empty value (or nothing more on a continuation line).
				ib.pos--
				ib.headerState = HeaderMultiLine
				continue
			}
			ib.pos--
			ib.headerState = HeaderValue
		case HeaderValue:
			b, ok, err := ib.nextByte()
			if err != nil {
				return headerNeedMoreData, err
			}
			if !ok {
				return headerNeedMoreData, nil
			}
			switch b {
			case '\r':
				continue
			case '\n':
				ib.headerState = HeaderMultiLine
			case ' ', '\t':
				ib.buf[ib.hd.realPos] = b
				ib.hd.realPos++
			default:
				if ib.hd.realPos != ib.pos-1 {
					ib.buf[ib.hd.realPos] = b
				}
				ib.hd.realPos++
				ib.hd.lastSignificantChar = ib.hd.realPos
			}
		case HeaderMultiLine:
			b, ok, err := ib.nextByte()
			if err != nil {
				return headerNeedMoreData, err
			}
			if !ok {
				return headerNeedMoreData, nil
			}
			if isSPHT(b) {
				// Obsolete line folding: continuation line. Insert one
				// space and keep accumulating into the same value.
				if ib.hd.realPos < len(ib.buf) {
					ib.buf[ib.hd.realPos] = ' '
				}
				ib.hd.realPos++
				ib.hd.lastSignificantChar = ib.hd.realPos
				ib.headerState = HeaderValueStart
				continue
			}
			ib.pos--
			value := string(ib.buf[ib.hd.start:ib.hd.lastSignificantChar])
			ib.Headers[ib.hd.name] = append(ib.Headers[ib.hd.name], value)
			ib.headerState = HeaderStart
			return headerHaveMore, nil
		case HeaderSkipLine:
			b, ok, err := ib.nextByte()
			if err != nil {
				return headerNeedMoreData, err
			}
			if !ok {
				return headerNeedMoreData, nil
			}
			if b == '\n' {
				ib.headerState = HeaderStart
				return headerHaveMore, nil
			}
		}
	}
}

func lowerASCII(b []byte) {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
}

// HeaderValue returns the first value for name (already lowercased)
// or "" if absent.
func (ib *InputBuffer) HeaderValue(name string) string {
	vs := ib.Headers[name]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// IsStrayCR reports whether prev is a CR that cur (not an LF) follows
// in a position where the spec requires rewinding two bytes and
// re-entering HEADER_START (the boundary behavior named in spec §8).
func IsStrayCR(prev, cur byte) bool {
	return prev == '\r' && cur != '\n'
}

var crlf = []byte("\r\n")

func trimTrailingCRLF(b []byte) []byte {
	return bytes.TrimRight(b, "\r\n")
}
