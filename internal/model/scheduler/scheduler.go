// Package scheduler tracks which modeled threads may run and picks the
// next one. Threads are cooperatively scheduled: the engine executes one
// action of one thread at a time, and between actions the scheduler's
// enabled set plus the oracle's thread choice decide who goes next.
//
// A thread is in exactly one of three states here: enabled (may be
// scheduled), disabled (blocked on a lock, join or condition variable),
// or in the sleep set (executing a thread-sleep that has not yet been
// allowed to end).
package scheduler

import (
	"github.com/wintered/c11tester/internal/model/fuzzer"
	"github.com/wintered/c11tester/internal/model/threads"
)

type status int

const (
	disabled status = iota
	enabled
	sleepSet
)

// Scheduler is the cooperative scheduler for one execution.
type Scheduler struct {
	// enabled is indexed by thread id; threads beyond the slice are
	// unknown and disabled.
	enabled []status
	all     []*threads.Thread
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) setStatus(t *threads.Thread, st status) {
	id := t.ID()
	for id >= len(s.enabled) {
		s.enabled = append(s.enabled, disabled)
		s.all = append(s.all, nil)
	}
	s.enabled[id] = st
	s.all[id] = t
}

// AddThread registers a new runnable thread.
func (s *Scheduler) AddThread(t *threads.Thread) {
	s.setStatus(t, enabled)
	t.SetState(threads.Ready)
}

// RemoveThread retires a blocked or completed thread from scheduling.
func (s *Scheduler) RemoveThread(t *threads.Thread) {
	if t.ID() < len(s.enabled) {
		s.enabled[t.ID()] = disabled
	}
}

// Sleep disables a thread that blocked on a lock, join or condition
// variable.
func (s *Scheduler) Sleep(t *threads.Thread) {
	s.setStatus(t, disabled)
	t.SetState(threads.Blocked)
}

// Wake re-enables a blocked or sleeping thread and clears what it was
// waiting on.
func (s *Scheduler) Wake(t *threads.Thread) {
	s.setStatus(t, enabled)
	t.SetState(threads.Ready)
	t.SetWaitingOn(nil)
}

// AddSleep places a thread executing a thread-sleep into the sleep set.
// Sleep-set threads remain schedulable: running one models the sleep
// ending spuriously.
func (s *Scheduler) AddSleep(t *threads.Thread) {
	s.setStatus(t, sleepSet)
}

// RemoveSleep takes a thread out of the sleep set.
func (s *Scheduler) RemoveSleep(t *threads.Thread) {
	s.setStatus(t, enabled)
}

// IsSleepSet reports whether the thread is in the sleep set.
func (s *Scheduler) IsSleepSet(t *threads.Thread) bool {
	return t.ID() < len(s.enabled) && s.enabled[t.ID()] == sleepSet
}

// IsEnabled reports whether the thread with the given id may be scheduled.
func (s *Scheduler) IsEnabled(tid int) bool {
	return tid >= 0 && tid < len(s.enabled) && s.enabled[tid] != disabled
}

// AllThreadsSleeping reports whether every schedulable thread is in the
// sleep set, which makes the rest of the execution redundant.
func (s *Scheduler) AllThreadsSleeping() bool {
	some := false
	for _, st := range s.enabled {
		switch st {
		case enabled:
			return false
		case sleepSet:
			some = true
		}
	}
	return some
}

// Enabled returns the currently schedulable threads in id order.
func (s *Scheduler) Enabled() []*threads.Thread {
	var list []*threads.Thread
	for id, st := range s.enabled {
		if st != disabled {
			list = append(list, s.all[id])
		}
	}
	return list
}

// Next asks the oracle to pick among the enabled threads. Returns nil when
// nothing is runnable.
func (s *Scheduler) Next(oracle fuzzer.Oracle) *threads.Thread {
	candidates := s.Enabled()
	if len(candidates) == 0 {
		return nil
	}
	return oracle.SelectThread(candidates)
}
