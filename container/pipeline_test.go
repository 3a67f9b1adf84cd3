// File: container/pipeline_test.go
// Author: momentics <momentics@gmail.com>

package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingValve struct {
	BaseValve
	name string
	log  *[]string
}

func (v *recordingValve) Invoke(ctx context.Context, req *Request, resp *Response) error {
	*v.log = append(*v.log, v.name)
	if v.Next() != nil {
		return v.Next().Invoke(ctx, req, resp)
	}
	return nil
}

func TestPipelineOrderingAndBasicValveInvariant(t *testing.T) {
	var log []string
	basic := &recordingValve{name: "basic", log: &log}
	w := NewWrapper("servlet", nil, 0)
	before := w.Pipeline().Basic()
	w.Pipeline().RemoveValve(before) // attempt to remove the basic valve...
	require.Same(t, before, w.Pipeline().Basic(), "basic valve identity must be stable")

	p := NewPipeline(w, basic)
	p.AddValve(&recordingValve{name: "first", log: &log})
	p.AddValve(&recordingValve{name: "second", log: &log})

	require.NoError(t, p.Invoke(context.Background(), &Request{}, &Response{}))
	require.Equal(t, []string{"first", "second", "basic"}, log)
	require.Equal(t, basic, p.Basic())
}

func TestContainerListenerCopyOnWrite(t *testing.T) {
	e := NewEngine("engine", 0)
	var seen []ContainerEventType
	e.AddListener(func(ev ContainerEvent) {
		seen = append(seen, ev.Type)
		// Mutating the listener list mid-dispatch must not affect this
		// dispatch's snapshot.
		e.AddListener(func(ContainerEvent) {})
	})
	require.NoError(t, e.AddChild("example.com", NewHost("example.com", 0)))
	require.Contains(t, seen, EventAddChild)
}

func TestHostSelectsLongestPrefix(t *testing.T) {
	host := NewHost("h", 0)
	var log []string
	shortCtx := NewContext("short", 0)
	shortCtx.Pipeline().AddValve(&recordingValve{name: "short", log: &log})
	longCtx := NewContext("long", 0)
	longCtx.Pipeline().AddValve(&recordingValve{name: "long", log: &log})
	require.NoError(t, host.AddChild("/a", shortCtx))
	require.NoError(t, host.AddChild("/a/b", longCtx))
	longCtx.Mappings["/a/b/c"] = "leaf"
	require.NoError(t, longCtx.AddChild("leaf", NewWrapper("leaf", func(context.Context, *Request, *Response) error { return nil }, 0)))

	req := &Request{URI: "/a/b/c"}
	resp := &Response{}
	require.NoError(t, host.Pipeline().Invoke(context.Background(), req, resp))
	require.Equal(t, []string{"long"}, log)
}
