// File: httpparse/errors.go
// Author: momentics <momentics@gmail.com>

package httpparse

import "errors"

// Parse errors surfaced as HTTP 400 by the caller (spec §7's Parse
// errors taxonomy).
var (
	ErrInvalidMethod        = errors.New("httpparse: invalid method")
	ErrInvalidRequestTarget = errors.New("httpparse: invalid request target")
	ErrInvalidProtocol      = errors.New("httpparse: invalid protocol")
	ErrHeaderTooLarge       = errors.New("httpparse: header too large")
	ErrInvalidHeader        = errors.New("httpparse: invalid header")
	ErrEOF                  = errors.New("httpparse: connection closed by peer")
	ErrBodyTooLarge         = errors.New("httpparse: request body too large")
)
