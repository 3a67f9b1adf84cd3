// File: container/pipeline.go
// Author: momentics <momentics@gmail.com>
//
// Pipeline is the ordered chain of valves for one container,
// terminated by a mandatory basic valve never removed by
// configuration changes (spec §3's Container invariant).
package container

import (
	"context"
	"sync"
)

// Pipeline owns an ordered valve chain; the last valve is always the
// basic valve supplied at construction.
type Pipeline struct {
	mu     sync.Mutex
	first  Valve // head of the chain, set by AddValve/RemoveValve
	valves []Valve
	basic  Valve
	owner  Container
}

// NewPipeline creates a pipeline whose sole valve, initially, is the
// container-specific basic valve.
func NewPipeline(owner Container, basic Valve) *Pipeline {
	basic.SetContainer(owner)
	p := &Pipeline{basic: basic, owner: owner}
	p.first = basic
	return p
}

// AddValve appends v ahead of the basic valve and relinks the chain.
// Safe to call while another goroutine is invoking the pipeline: the
// relink happens under a lock, and Valve.Next()/Invoke reads of an
// in-flight request see either the old or the new chain consistently
// at each hop, never a torn one (spec §5's container-tree mutation
// policy, applied to the pipeline specifically since it is
// reconfigured far more often than the tree itself).
func (p *Pipeline) AddValve(v Valve) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v.SetContainer(p.owner)
	p.valves = append(p.valves, v)
	p.relink()
	p.owner.fireContainerEvent(EventAddValve, v)
}

// RemoveValve removes v if present; the basic valve itself cannot be
// removed this way (spec §3 invariant).
func (p *Pipeline) RemoveValve(v Valve) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.valves {
		if existing == v {
			p.valves = append(p.valves[:i], p.valves[i+1:]...)
			p.relink()
			p.owner.fireContainerEvent(EventRemoveValve, v)
			return
		}
	}
}

func (p *Pipeline) relink() {
	chain := append([]Valve{}, p.valves...)
	chain = append(chain, p.basic)
	for i := 0; i < len(chain)-1; i++ {
		chain[i].SetNext(chain[i+1])
	}
	chain[len(chain)-1].SetNext(nil)
	p.first = chain[0]
}

// Invoke runs the pipeline from its first valve.
func (p *Pipeline) Invoke(ctx context.Context, req *Request, resp *Response) error {
	p.mu.Lock()
	first := p.first
	p.mu.Unlock()
	return first.Invoke(ctx, req, resp)
}

// Valves returns a snapshot of the configured (non-basic) valves, in
// order.
func (p *Pipeline) Valves() []Valve {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Valve, len(p.valves))
	copy(out, p.valves)
	return out
}

// Basic returns the pipeline's mandatory basic valve.
func (p *Pipeline) Basic() Valve { return p.basic }
