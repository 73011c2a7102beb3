// Package tasks provides repeating and one-shot timers whose callbacks run on a
// single owner goroutine. Every armed task is tracked so an owner can cancel all
// outstanding work when it tears down.
package tasks

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"
)

// Poster hands fn to the owner goroutine. It returns false once the owner has
// stopped accepting work.
type Poster func(fn func()) bool

// Handle cancels an armed task.
type Handle interface {
	Cancel()
}

// Scheduler arms tasks.
type Scheduler interface {
	// Every runs fn each interval until fn returns true or the task is cancelled.
	Every(name string, interval time.Duration, fn func() (done bool)) Handle
	// After runs fn once after delay unless cancelled first.
	After(name string, delay time.Duration, fn func()) Handle
}

// Set tracks armed tasks for one owner.
type Set struct {
	mu    sync.Mutex
	post  Poster
	next  uint64
	tasks map[uint64]*Task
	log   pslog.Logger
}

// NewSet constructs a Set posting callbacks through post.
func NewSet(post Poster, logger pslog.Logger) *Set {
	return &Set{post: post, tasks: make(map[uint64]*Task), log: logger}
}

// Task is an armed timer.
type Task struct {
	id        uint64
	name      string
	set       *Set
	stop      chan struct{}
	once      sync.Once
	cancelled atomic.Bool
}

// Name returns the task label.
func (t *Task) Name() string {
	return t.name
}

// Cancel stops the task. Callbacks already queued on the owner become no-ops.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.stop)
		t.set.remove(t.id)
	})
}

// Cancelled reports whether Cancel has run.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

func (s *Set) arm(name string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	t := &Task{id: s.next, name: name, set: s, stop: make(chan struct{})}
	s.tasks[t.id] = t
	if s.log != nil {
		s.log.Trace("task armed", "task", name, "active", len(s.tasks))
	}
	return t
}

func (s *Set) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		delete(s.tasks, id)
		if s.log != nil {
			s.log.Trace("task released", "task", t.name, "active", len(s.tasks))
		}
	}
}

// Every implements Scheduler.
func (s *Set) Every(name string, interval time.Duration, fn func() bool) Handle {
	t := s.arm(name)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				ok := s.post(func() {
					if t.Cancelled() {
						return
					}
					if fn() {
						t.Cancel()
					}
				})
				if !ok {
					t.Cancel()
					return
				}
			}
		}
	}()
	return t
}

// After implements Scheduler.
func (s *Set) After(name string, delay time.Duration, fn func()) Handle {
	t := s.arm(name)
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}
		ok := s.post(func() {
			if t.Cancelled() {
				return
			}
			t.Cancel()
			fn()
		})
		if !ok {
			t.Cancel()
		}
	}()
	return t
}

// CancelAll cancels every tracked task.
func (s *Set) CancelAll() {
	s.mu.Lock()
	armed := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		armed = append(armed, t)
	}
	s.mu.Unlock()
	for _, t := range armed {
		t.Cancel()
	}
}

// Len returns the number of armed tasks.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Names returns the sorted labels of armed tasks.
func (s *Set) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}
