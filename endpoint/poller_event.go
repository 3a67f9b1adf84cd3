// File: endpoint/poller_event.go
// Author: momentics <momentics@gmail.com>

package endpoint

import "github.com/momentics/nio-endpoint/api"

// PollerEvent is the (channel, interestOps) value object of spec §3,
// passed by value through the Poller's events queue. It is not pooled.
type PollerEvent struct {
	Wrapper *ChannelWrapper
	Ops     api.InterestOps
	// Register, when true, means this event is registering a brand
	// new channel rather than re-arming interest on one already known
	// to the Poller.
	Register bool
}
