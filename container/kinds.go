// File: container/kinds.go
// Author: momentics <momentics@gmail.com>
//
// Concrete container kinds: Engine, Host, Context, Wrapper. Per spec
// §9 these differ only in their basic valve (how dispatch selects the
// next level down) and their child-key semantics (host: name,
// context: path, wrapper: servlet name) -- there is no separate class
// per kind beyond that.
package container

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/momentics/nio-endpoint/lifecycle"
)

// ErrNoMatchingChild is returned (as an HTTP-visible 404 by the
// caller) when a basic valve cannot find a child to dispatch to.
var ErrNoMatchingChild = errors.New("container: no matching child")

// --- Engine -----------------------------------------------------------

// Engine is the top-level container; its basic valve selects a Host
// by the request's Host header.
type Engine struct {
	*BaseContainer
	DefaultHost string
}

func NewEngine(name string, delay time.Duration) *Engine {
	e := &Engine{BaseContainer: NewBaseContainer(name, delay)}
	e.bindPipeline(e, &engineBasicValve{engine: e})
	return e
}

func (e *Engine) Start(ctx context.Context) error {
	if err := e.SetState(lifecycle.StartingPrep); err != nil {
		return err
	}
	if err := e.startChildren(ctx); err != nil {
		_ = e.SetState(lifecycle.Failed)
		return err
	}
	if err := e.SetState(lifecycle.Starting); err != nil {
		return err
	}
	e.fireContainerEvent(EventStart, nil)
	return e.SetState(lifecycle.Started)
}

func (e *Engine) Stop(ctx context.Context) error {
	if err := e.SetState(lifecycle.StoppingPrep); err != nil {
		return err
	}
	e.fireContainerEvent(EventStop, nil)
	if err := e.stopChildren(ctx); err != nil {
		_ = e.SetState(lifecycle.Failed)
		return err
	}
	_ = e.SetState(lifecycle.Stopping)
	return e.SetState(lifecycle.Stopped)
}

type engineBasicValve struct {
	BaseValve
	engine *Engine
}

func (v *engineBasicValve) Invoke(ctx context.Context, req *Request, resp *Response) error {
	host := req.Host
	if host == "" {
		host = v.engine.DefaultHost
	}
	child, ok := v.engine.Child(host)
	if !ok {
		child, ok = v.engine.Child(v.engine.DefaultHost)
	}
	if !ok {
		return ErrNoMatchingChild
	}
	if req.Attributes == nil {
		req.Attributes = make(map[string]any)
	}
	req.Attributes["container.host"] = child
	return child.Pipeline().Invoke(ctx, req, resp)
}

// --- Host ---------------------------------------------------------------

// Host selects a Context by the longest matching URI path prefix
// among its children (spec's "host's basic valve selects a context by
// URI prefix").
type Host struct {
	*BaseContainer
}

func NewHost(name string, delay time.Duration) *Host {
	h := &Host{BaseContainer: NewBaseContainer(name, delay)}
	h.bindPipeline(h, &hostBasicValve{host: h})
	return h
}

func (h *Host) Start(ctx context.Context) error {
	if err := h.SetState(lifecycle.StartingPrep); err != nil {
		return err
	}
	if err := h.startChildren(ctx); err != nil {
		_ = h.SetState(lifecycle.Failed)
		return err
	}
	if err := h.SetState(lifecycle.Starting); err != nil {
		return err
	}
	h.fireContainerEvent(EventStart, nil)
	return h.SetState(lifecycle.Started)
}

func (h *Host) Stop(ctx context.Context) error {
	if err := h.SetState(lifecycle.StoppingPrep); err != nil {
		return err
	}
	h.fireContainerEvent(EventStop, nil)
	if err := h.stopChildren(ctx); err != nil {
		_ = h.SetState(lifecycle.Failed)
		return err
	}
	_ = h.SetState(lifecycle.Stopping)
	return h.SetState(lifecycle.Stopped)
}

type hostBasicValve struct {
	BaseValve
	host *Host
}

func (v *hostBasicValve) Invoke(ctx context.Context, req *Request, resp *Response) error {
	path := req.URI
	var best Container
	bestLen := -1
	for key, child := range v.host.Children() {
		if strings.HasPrefix(path, key) && len(key) > bestLen {
			best, bestLen = child, len(key)
		}
	}
	if best == nil {
		return ErrNoMatchingChild
	}
	if req.Attributes == nil {
		req.Attributes = make(map[string]any)
	}
	req.Attributes["container.context"] = best
	return best.Pipeline().Invoke(ctx, req, resp)
}

// --- Context --------------------------------------------------------------

// Ctx (named to avoid colliding with context.Context) selects a
// Wrapper by exact servlet mapping.
type Ctx struct {
	*BaseContainer
	Mappings map[string]string // URI path -> servlet (wrapper) name
}

func NewContext(name string, delay time.Duration) *Ctx {
	c := &Ctx{BaseContainer: NewBaseContainer(name, delay), Mappings: make(map[string]string)}
	c.bindPipeline(c, &contextBasicValve{ctx: c})
	return c
}

func (c *Ctx) Start(ctx context.Context) error {
	if err := c.SetState(lifecycle.StartingPrep); err != nil {
		return err
	}
	if err := c.startChildren(ctx); err != nil {
		_ = c.SetState(lifecycle.Failed)
		return err
	}
	if err := c.SetState(lifecycle.Starting); err != nil {
		return err
	}
	c.fireContainerEvent(EventStart, nil)
	return c.SetState(lifecycle.Started)
}

func (c *Ctx) Stop(ctx context.Context) error {
	if err := c.SetState(lifecycle.StoppingPrep); err != nil {
		return err
	}
	c.fireContainerEvent(EventStop, nil)
	if err := c.stopChildren(ctx); err != nil {
		_ = c.SetState(lifecycle.Failed)
		return err
	}
	_ = c.SetState(lifecycle.Stopping)
	return c.SetState(lifecycle.Stopped)
}

type contextBasicValve struct {
	BaseValve
	ctx *Ctx
}

func (v *contextBasicValve) Invoke(ctx context.Context, req *Request, resp *Response) error {
	servletName, ok := v.ctx.Mappings[req.URI]
	if !ok {
		return ErrNoMatchingChild
	}
	wrapper, ok := v.ctx.Child(servletName)
	if !ok {
		return ErrNoMatchingChild
	}
	if req.Attributes == nil {
		req.Attributes = make(map[string]any)
	}
	req.Attributes["container.wrapper"] = wrapper
	return wrapper.Pipeline().Invoke(ctx, req, resp)
}

// --- Wrapper --------------------------------------------------------------

// ServletFunc is the out-of-scope servlet API surface's one concrete
// entry point this core needs: a function that reads Request and
// writes Response.
type ServletFunc func(ctx context.Context, req *Request, resp *Response) error

// Wrapper is the leaf container; its basic valve invokes the bound
// servlet function directly (there are no further children).
type Wrapper struct {
	*BaseContainer
	Servlet ServletFunc
}

func NewWrapper(name string, servlet ServletFunc, delay time.Duration) *Wrapper {
	w := &Wrapper{BaseContainer: NewBaseContainer(name, delay), Servlet: servlet}
	w.bindPipeline(w, &wrapperBasicValve{wrapper: w})
	return w
}

func (w *Wrapper) Start(ctx context.Context) error {
	if err := w.SetState(lifecycle.StartingPrep); err != nil {
		return err
	}
	if err := w.SetState(lifecycle.Starting); err != nil {
		return err
	}
	w.fireContainerEvent(EventStart, nil)
	return w.SetState(lifecycle.Started)
}

func (w *Wrapper) Stop(ctx context.Context) error {
	if err := w.SetState(lifecycle.StoppingPrep); err != nil {
		return err
	}
	w.fireContainerEvent(EventStop, nil)
	_ = w.SetState(lifecycle.Stopping)
	return w.SetState(lifecycle.Stopped)
}

type wrapperBasicValve struct {
	BaseValve
	wrapper *Wrapper
}

func (v *wrapperBasicValve) Invoke(ctx context.Context, req *Request, resp *Response) error {
	if v.wrapper.Servlet == nil {
		return ErrNoMatchingChild
	}
	return v.wrapper.Servlet(ctx, req, resp)
}
