// File: api/shutdown.go
// Package api defines the unified graceful shutdown contract,
// implemented by endpoint.Endpoint (containers stop through Stop).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// GracefulShutdown is implemented by components whose teardown must be
// bounded by a caller-supplied deadline rather than an implicit
// constant. ctx.Err() on return tells the caller whether the component
// stopped cleanly or the deadline was hit first.
type GracefulShutdown interface {
	Shutdown(ctx context.Context) error
}
