// internal/service/deferred.go
package service

import (
	"sync"
	"time"
)

// TaskRunner schedules fire-and-forget deferred work, mainly the
// simulated provider-side delivery confirmation. An interface so tests
// can run tasks without wall-clock waits.
type TaskRunner interface {
	AfterFunc(d time.Duration, f func())
	StopAll()
}

// TimerRunner backs TaskRunner with real timers and keeps track of the
// outstanding ones so a shutdown can cancel them mid-flight.
type TimerRunner struct {
	mu      sync.Mutex
	timers  map[int]*time.Timer
	nextID  int
	stopped bool
}

func NewTimerRunner() *TimerRunner {
	return &TimerRunner{timers: make(map[int]*time.Timer)}
}

func (r *TimerRunner) AfterFunc(d time.Duration, f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	id := r.nextID
	r.nextID++
	r.timers[id] = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, id)
		stopped := r.stopped
		r.mu.Unlock()
		if !stopped {
			f()
		}
	})
}

// Pending reports how many tasks are still waiting to fire.
func (r *TimerRunner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// StopAll cancels every outstanding task. Further AfterFunc calls become
// no-ops.
func (r *TimerRunner) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

var _ TaskRunner = (*TimerRunner)(nil)
