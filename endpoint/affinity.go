// File: endpoint/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for the Poller's OS thread, generalized from the
// teacher's cgo pthread_setaffinity_np binding
// (affinity/affinity_linux.go) into a syscall.SchedSetaffinity call
// via golang.org/x/sys/unix, since the Poller is the one goroutine in
// this architecture that benefits from staying on a single core (its
// epoll instance and eventfd are both thread-local in spirit, even
// though Go doesn't pin goroutines to OS threads by default).
package endpoint

import (
	"runtime"

	"github.com/momentics/nio-endpoint/api"
	"golang.org/x/sys/unix"
)

// cpuAffinity implements api.Affinity for a single calling OS thread.
// Pin must be called from the goroutine to be pinned, after
// runtime.LockOSThread.
type cpuAffinity struct {
	cpuID  int
	pinned bool
}

var _ api.Affinity = (*cpuAffinity)(nil)

func newCPUAffinity() *cpuAffinity { return &cpuAffinity{cpuID: -1} }

func (a *cpuAffinity) Pin(cpuID, _ int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	a.cpuID = cpuID
	a.pinned = true
	return nil
}

func (a *cpuAffinity) Unpin() error {
	if !a.pinned {
		return nil
	}
	a.pinned = false
	runtime.UnlockOSThread()
	return nil
}

func (a *cpuAffinity) Get() (cpuID, numaID int, err error) { return a.cpuID, -1, nil }

func (a *cpuAffinity) Scope() api.AffinityScope { return api.ScopeGoroutine }

func (a *cpuAffinity) ImmutableDescriptor() api.AffinityDescriptor {
	return api.AffinityDescriptor{CPUID: a.cpuID, NUMAID: -1, Scope: api.ScopeGoroutine, Pinned: a.pinned}
}

// pinPollerThread pins the calling goroutine's OS thread to cpuID when
// cpuID >= 0; a negative value leaves scheduling to the Go runtime,
// matching PollerThreadPriority's "advisory, 0 means default" spirit.
func pinPollerThread(cpuID int) {
	if cpuID < 0 {
		return
	}
	a := newCPUAffinity()
	_ = a.Pin(cpuID, -1)
}
