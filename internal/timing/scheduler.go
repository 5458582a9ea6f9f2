package timing

import (
	"sort"
	"sync"
	"time"
)

// Scheduler defers functions by a wall-clock delay. A scheduled task always
// runs to completion; there is no mid-flight cancellation.
type Scheduler interface {
	Schedule(d time.Duration, fn func())
}

type wallClock struct{}

// NewScheduler returns the production scheduler backed by time.AfterFunc.
func NewScheduler() Scheduler {
	return wallClock{}
}

func (wallClock) Schedule(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// ManualScheduler is a Scheduler for tests: tasks run only when the caller
// advances its virtual clock.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []manualTask
}

type manualTask struct {
	due time.Duration
	seq int
	fn  func()
}

// NewManualScheduler creates a scheduler with virtual time at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Schedule(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.tasks = append(m.tasks, manualTask{due: m.now + d, seq: len(m.tasks), fn: fn})
}

// Advance moves virtual time forward by d, running every task that comes due
// in order. Tasks scheduled while running are honored within the same
// advance if they fall inside the window.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	for {
		idx := -1
		for i, t := range m.tasks {
			if t.due > target {
				continue
			}
			if idx == -1 || t.due < m.tasks[idx].due ||
				(t.due == m.tasks[idx].due && t.seq < m.tasks[idx].seq) {
				idx = i
			}
		}
		if idx == -1 {
			break
		}
		task := m.tasks[idx]
		m.tasks = append(m.tasks[:idx], m.tasks[idx+1:]...)
		if task.due > m.now {
			m.now = task.due
		}
		m.mu.Unlock()
		task.fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

// Pending returns the delays of tasks not yet run, soonest first.
func (m *ManualScheduler) Pending() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.tasks))
	for i, t := range m.tasks {
		out[i] = t.due - m.now
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
