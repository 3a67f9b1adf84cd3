// File: container/background.go
// Author: momentics <momentics@gmail.com>
//
// BackgroundProcessor implements spec §4.7's periodic housekeeping
// task: walk the container tree invoking BackgroundProcess() on each
// valve at levels whose own delay is <= 0 (meaning "use mine
// instead"), only ever firing when the container's configured delay
// is > 0. Scheduled through api.BackgroundScheduler (TickerScheduler
// below).
package container

import (
	"sync"
	"time"

	"github.com/momentics/nio-endpoint/api"
)

// TickerScheduler is the default api.BackgroundScheduler, backed by a
// time.Ticker.
type TickerScheduler struct {
	mu     sync.Mutex
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ api.BackgroundScheduler = (*TickerScheduler)(nil)

func (s *TickerScheduler) Start(interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(interval)
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				fn()
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stopCh)
	s.ticker = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// RunBackgroundProcess walks c's subtree once, invoking
// BackgroundProcess on every valve of every container whose own
// BackgroundProcessorDelay is <= 0 (it defers to the ancestor that
// does schedule it); containers with their own positive delay are
// skipped here since they run their own scheduler.
func RunBackgroundProcess(c Container) {
	for _, v := range c.Pipeline().Valves() {
		v.BackgroundProcess()
	}
	c.Pipeline().Basic().BackgroundProcess()
	for _, child := range c.Children() {
		if child.BackgroundProcessorDelay() <= 0 {
			RunBackgroundProcess(child)
		}
	}
}

// StartBackgroundProcessor schedules RunBackgroundProcess on c's own
// scheduler if its delay is > 0 (spec §4.7: "only when > 0").
func StartBackgroundProcessor(c Container, sched api.BackgroundScheduler) {
	delay := c.BackgroundProcessorDelay()
	if delay <= 0 {
		return
	}
	sched.Start(delay, func() { RunBackgroundProcess(c) })
}
