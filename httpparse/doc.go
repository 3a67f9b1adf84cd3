// File: httpparse/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package httpparse implements the resumable HTTP/1.1 request-line and
// header parser (spec §4.4): a state machine indexed by phase so that
// "suspension" is nothing more than returning with phase fields
// positioned to resume on the next Fill. The package has no dependency
// on the endpoint package; it reads through the small Source interface,
// which *endpoint.ChannelWrapper satisfies structurally.
package httpparse
