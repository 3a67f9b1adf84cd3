// Package control
// Author: momentics <momentics@gmail.com>
//
// Hot-reload, runtime metrics, configuration control, and debug
// introspection layer for the endpoint's control plane (spec §10).
//
// Provides concurrent-safe state handling primitives including:
//   - Viper-backed configuration with hot-reload on file change
//   - Runtime observers for component reload
//   - Prometheus metrics collectors
//   - State export, debug hooks, and probe registration
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
