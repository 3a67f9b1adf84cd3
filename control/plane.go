// control/plane.go
// Author: momentics <momentics@gmail.com>
//
// Plane composes ConfigStore, MetricsRegistry and DebugProbes behind
// the api.Control/api.Debug contracts, so cmd/nio-endpoint (or any
// future admin HTTP handler) has one object to hand out instead of
// three unrelated ones.
package control

import "github.com/momentics/nio-endpoint/api"

// Plane is the endpoint's control plane: configuration, metrics, and
// debug introspection behind one handle.
type Plane struct {
	Config  *ConfigStore
	Metrics *MetricsRegistry
	Debug   *DebugProbes
}

var (
	_ api.Control = (*Plane)(nil)
	_ api.Debug   = (*Plane)(nil)
)

// NewPlane wires a fresh ConfigStore/MetricsRegistry/DebugProbes
// triple and registers the platform probes for the running OS.
func NewPlane(cs *ConfigStore) *Plane {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	p := &Plane{
		Config:  cs,
		Metrics: NewMetricsRegistry(),
		Debug:   dp,
	}
	dp.RegisterProbe("config.snapshot", func() any { return cs.GetSnapshot() })
	return p
}

func (p *Plane) GetConfig() map[string]any { return p.Config.GetSnapshot() }

func (p *Plane) SetConfig(cfg map[string]any) error {
	p.Config.SetConfig(cfg)
	return nil
}

func (p *Plane) Stats() map[string]any {
	return p.Debug.DumpState()
}

func (p *Plane) OnReload(fn func()) { p.Config.OnReload(fn) }

func (p *Plane) RegisterDebugProbe(name string, fn func() any) {
	p.Debug.RegisterProbe(name, fn)
}

func (p *Plane) DumpState() map[string]any { return p.Debug.DumpState() }

func (p *Plane) RegisterProbe(name string, fn func() any) { p.Debug.RegisterProbe(name, fn) }
