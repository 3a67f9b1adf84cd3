// File: endpoint/handler.go
// Author: momentics <momentics@gmail.com>

package endpoint

import "github.com/momentics/nio-endpoint/api"

// Handler is the protocol processor invoked by a Socket Processor
// task once any TLS handshake is complete (spec §4.3 step 2). The
// http1 package's Processor implements this to run the HTTP/1.1
// request/response cycle through the container pipeline.
//
// Handler is declared here rather than in api so that it may name
// *ChannelWrapper directly without api importing endpoint and
// endpoint importing api back (spec §9's "no cyclic ownership" note,
// applied to the package graph itself).
type Handler interface {
	Process(wrapper *ChannelWrapper, event api.SocketEvent) (api.SocketState, error)
}
