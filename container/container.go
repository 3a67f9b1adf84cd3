// File: container/container.go
// Author: momentics <momentics@gmail.com>
//
// BaseContainer is the single Container capability of spec §9:
// accept children, run a pipeline, and share the lifecycle template
// method. Concrete container kinds (Engine, Host, Context, Wrapper)
// embed it and differ only in their basic valve and child-key
// semantics.
package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/nio-endpoint/lifecycle"
)

// ContainerEventType names the events listeners observe (spec §4.7).
type ContainerEventType string

const (
	EventAddChild    ContainerEventType = "ADD_CHILD"
	EventRemoveChild ContainerEventType = "REMOVE_CHILD"
	EventAddValve    ContainerEventType = "ADD_VALVE"
	EventRemoveValve ContainerEventType = "REMOVE_VALVE"
	EventStart       ContainerEventType = "START"
	EventStop        ContainerEventType = "STOP"
)

// ContainerEvent carries one lifecycle/tree notification.
type ContainerEvent struct {
	Type ContainerEventType
	Data any
}

// ContainerListener receives ContainerEvents; like lifecycle.Listener
// it may mutate the listener list during its own invocation, which is
// safe because the list is copy-on-write.
type ContainerListener func(ContainerEvent)

// Container is the capability every concrete container kind
// implements: name, parent/child tree navigation, pipeline access,
// and the start/stop template method.
type Container interface {
	Name() string
	Parent() Container
	SetParent(Container)

	AddChild(key string, child Container) error
	RemoveChild(key string)
	Child(key string) (Container, bool)
	Children() map[string]Container

	Pipeline() *Pipeline
	AddListener(ContainerListener)

	BackgroundProcessorDelay() time.Duration

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// fireContainerEvent is unexported: only this package's Pipeline
	// and BaseContainer dispatch container events.
	fireContainerEvent(ContainerEventType, any)
}

// BaseContainer implements Container; concrete kinds embed it and
// supply their own basic valve via NewPipeline at construction.
type BaseContainer struct {
	lifecycle.Base

	name   string
	parent Container

	mu       sync.RWMutex
	children map[string]Container

	pipeline *Pipeline

	listenersMu sync.Mutex
	listeners   []ContainerListener

	backgroundProcessorDelay time.Duration
}

// NewBaseContainer creates the shared state; concrete constructors
// must call bindPipeline once their own type (the Pipeline's owner)
// exists, and SetParent once the parent is known.
func NewBaseContainer(name string, delay time.Duration) *BaseContainer {
	bc := &BaseContainer{
		name:                     name,
		children:                 make(map[string]Container),
		backgroundProcessorDelay: delay,
	}
	_ = bc.SetState(lifecycle.Initialized)
	return bc
}

// bindPipeline finishes construction once the concrete container type
// (which must implement Container to be a valid Pipeline owner) is
// available; concrete constructors call this immediately after
// embedding BaseContainer.
func (bc *BaseContainer) bindPipeline(self Container, basic Valve) {
	bc.pipeline = NewPipeline(self, basic)
}

func (bc *BaseContainer) Name() string { return bc.name }

func (bc *BaseContainer) Parent() Container { return bc.parent }

func (bc *BaseContainer) SetParent(p Container) { bc.parent = p }

func (bc *BaseContainer) AddChild(key string, child Container) error {
	bc.mu.Lock()
	if _, exists := bc.children[key]; exists {
		bc.mu.Unlock()
		return fmt.Errorf("container: child key %q already present under %q", key, bc.name)
	}
	bc.children[key] = child
	bc.mu.Unlock()
	bc.fireContainerEvent(EventAddChild, child)
	return nil
}

func (bc *BaseContainer) RemoveChild(key string) {
	bc.mu.Lock()
	child, ok := bc.children[key]
	delete(bc.children, key)
	bc.mu.Unlock()
	if ok {
		bc.fireContainerEvent(EventRemoveChild, child)
	}
}

func (bc *BaseContainer) Child(key string) (Container, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	c, ok := bc.children[key]
	return c, ok
}

// Children returns a snapshot copy, safe to range over while the tree
// is concurrently mutated (spec §5's copy-on-write read policy).
func (bc *BaseContainer) Children() map[string]Container {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	out := make(map[string]Container, len(bc.children))
	for k, v := range bc.children {
		out[k] = v
	}
	return out
}

func (bc *BaseContainer) Pipeline() *Pipeline { return bc.pipeline }

func (bc *BaseContainer) BackgroundProcessorDelay() time.Duration { return bc.backgroundProcessorDelay }

func (bc *BaseContainer) AddListener(l ContainerListener) {
	bc.listenersMu.Lock()
	defer bc.listenersMu.Unlock()
	next := make([]ContainerListener, len(bc.listeners)+1)
	copy(next, bc.listeners)
	next[len(bc.listeners)] = l
	bc.listeners = next
}

func (bc *BaseContainer) fireContainerEvent(t ContainerEventType, data any) {
	bc.listenersMu.Lock()
	snapshot := bc.listeners
	bc.listenersMu.Unlock()
	ev := ContainerEvent{Type: t, Data: data}
	for _, l := range snapshot {
		l(ev)
	}
}

// startChildren runs the child step of spec §4.7's template method:
// cluster/realm are out of scope here (spec §1's external
// collaborators) and valves have no lifecycle, so the sequence reduces
// to starting the children in parallel; Wait returns the first error
// once every child has returned. stopChildren is the same for stop.
func (bc *BaseContainer) startChildren(ctx context.Context) error {
	children := bc.Children()
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range children {
		c := c
		g.Go(func() error { return c.Start(gctx) })
	}
	return g.Wait()
}

func (bc *BaseContainer) stopChildren(ctx context.Context) error {
	children := bc.Children()
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range children {
		c := c
		g.Go(func() error { return c.Stop(gctx) })
	}
	return g.Wait()
}
