// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Configuration store backed by spf13/viper: layered defaults, flags,
// env vars and an optional config file, with hot-reload propagation
// via viper's own file watcher.

package control

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigStore wraps a *viper.Viper with listener support, so callers
// that used to poll GetSnapshot can instead register OnReload and react
// to a live config file edit.
type ConfigStore struct {
	v *viper.Viper

	mu        sync.RWMutex
	listeners []func()
}

// NewConfigStore wraps an existing *viper.Viper (nil means a fresh
// viper.New()). cmd/nio-endpoint passes the viper.New() instance its
// flags are bound to.
func NewConfigStore(v *viper.Viper) *ConfigStore {
	if v == nil {
		v = viper.New()
	}
	return &ConfigStore{v: v}
}

// GetSnapshot returns a copy of every setting viper currently knows
// about (defaults, flags, env, file — in viper's own precedence order).
func (cs *ConfigStore) GetSnapshot() map[string]any {
	return cs.v.AllSettings()
}

// SetConfig overrides the given keys in-process and dispatches reload
// listeners; it does not touch the on-disk config file.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	for k, v := range newCfg {
		cs.v.Set(k, v)
	}
	cs.dispatchReload()
}

// OnReload registers a listener invoked whenever the config changes,
// either via SetConfig or via the watched config file being edited.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.listeners) == 0 {
		cs.v.OnConfigChange(func(fsnotify.Event) { cs.dispatchReload() })
		cs.v.WatchConfig()
	}
	cs.listeners = append(cs.listeners, fn)
}

func (cs *ConfigStore) dispatchReload() {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, fn := range cs.listeners {
		go fn()
	}
}

// Viper exposes the underlying instance for components (e.g.
// cmd/nio-endpoint) that need typed lookups beyond GetSnapshot.
func (cs *ConfigStore) Viper() *viper.Viper {
	return cs.v
}
