// File: endpoint/errors.go
// Author: momentics <momentics@gmail.com>

package endpoint

import (
	"fmt"

	"github.com/momentics/nio-endpoint/api"
)

var (
	ErrEndpointClosed  = fmt.Errorf("endpoint: closed: %w", api.ErrClosed)
	ErrEndpointPaused  = fmt.Errorf("endpoint: paused: %w", api.ErrIllegalState)
	ErrAcceptorStopped = fmt.Errorf("endpoint: acceptor stopped: %w", api.ErrClosed)
	ErrSocketTimeout   = fmt.Errorf("endpoint: socket timeout: %w", api.ErrOperationTimeout)
	ErrBindFailed      = fmt.Errorf("endpoint: bind failed: %w", api.ErrInvalidArgument)
)
