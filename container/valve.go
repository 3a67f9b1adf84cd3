// File: container/valve.go
// Author: momentics <momentics@gmail.com>
//
// Valve is a request-processing stage inside a container's Pipeline
// (spec §3's Valve/Pipeline data model). Per spec §9, a valve holds a
// non-owning reference to its container and to the next valve in its
// pipeline; chaining is internal (Next().Invoke(...)), not a
// "next" argument threaded through every call.
package container

import "context"

// Valve is the single capability collapsing the deep Tomcat valve
// hierarchy (spec §9): invoke the request, optionally calling the
// next valve in the chain.
type Valve interface {
	// Invoke processes req/resp and is responsible for calling
	// Next().Invoke(...) itself if it wants downstream valves to run.
	// A valve that does not call Next ends the pipeline early (e.g. on
	// an error response already committed).
	Invoke(ctx context.Context, req *Request, resp *Response) error

	// SetContainer and SetNext wire a valve into a Pipeline; only the
	// owning Pipeline calls these.
	SetContainer(c Container)
	SetNext(v Valve)
	Container() Container
	Next() Valve

	// BackgroundProcess is invoked by the background processor (spec
	// §4.7) at the container's housekeeping interval; valves with no
	// periodic work implement it as a no-op via BaseValve.
	BackgroundProcess()
}

// BaseValve is embedded by concrete valves to satisfy the wiring and
// background-process parts of the Valve interface without
// boilerplate in every implementation.
type BaseValve struct {
	container Container
	next      Valve
}

func (b *BaseValve) SetContainer(c Container) { b.container = c }
func (b *BaseValve) SetNext(v Valve)          { b.next = v }
func (b *BaseValve) Container() Container     { return b.container }
func (b *BaseValve) Next() Valve              { return b.next }
func (b *BaseValve) BackgroundProcess()       {}

// ValveFunc adapts a plain function to the Valve interface for simple
// stateless valves (e.g. access logging) that need no container
// reference of their own beyond what BaseValve already tracks.
type ValveFunc struct {
	BaseValve
	Fn func(ctx context.Context, req *Request, resp *Response, next Valve) error
}

func (v *ValveFunc) Invoke(ctx context.Context, req *Request, resp *Response) error {
	return v.Fn(ctx, req, resp, v.Next())
}
