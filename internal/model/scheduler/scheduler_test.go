package scheduler

import (
	"testing"

	"github.com/wintered/c11tester/internal/model/fuzzer"
	"github.com/wintered/c11tester/internal/model/threads"
)

// TestAddThreadEnables tests that registered threads are schedulable.
func TestAddThreadEnables(t *testing.T) {
	s := New()
	th := threads.New(1)
	s.AddThread(th)

	if !s.IsEnabled(1) {
		t.Error("IsEnabled(1) = false, want true after AddThread")
	}
	if th.State() != threads.Ready {
		t.Errorf("thread state = %v, want Ready", th.State())
	}
}

// TestSleepWake tests the blocked/enabled transition.
func TestSleepWake(t *testing.T) {
	s := New()
	th := threads.New(1)
	s.AddThread(th)

	s.Sleep(th)
	if s.IsEnabled(1) {
		t.Error("IsEnabled(1) = true, want false after Sleep")
	}
	if !th.IsBlocked() {
		t.Error("thread not blocked after Sleep")
	}

	th.SetWaitingOn(threads.New(2))
	s.Wake(th)
	if !s.IsEnabled(1) {
		t.Error("IsEnabled(1) = false, want true after Wake")
	}
	if th.WaitingOn() != nil {
		t.Error("Wake did not clear WaitingOn")
	}
}

// TestSleepSet tests that sleep-set threads stay schedulable but are
// tracked separately.
func TestSleepSet(t *testing.T) {
	s := New()
	th := threads.New(1)
	s.AddThread(th)

	s.AddSleep(th)
	if !s.IsSleepSet(th) {
		t.Error("IsSleepSet = false, want true after AddSleep")
	}
	if !s.IsEnabled(1) {
		t.Error("IsEnabled(1) = false, want true: sleep-set threads remain schedulable")
	}

	s.RemoveSleep(th)
	if s.IsSleepSet(th) {
		t.Error("IsSleepSet = true, want false after RemoveSleep")
	}
}

// TestAllThreadsSleeping tests the redundancy signal.
func TestAllThreadsSleeping(t *testing.T) {
	s := New()
	t1, t2 := threads.New(1), threads.New(2)
	s.AddThread(t1)
	s.AddThread(t2)

	if s.AllThreadsSleeping() {
		t.Error("AllThreadsSleeping() = true with enabled threads")
	}

	s.AddSleep(t1)
	if s.AllThreadsSleeping() {
		t.Error("AllThreadsSleeping() = true with one enabled thread left")
	}

	s.AddSleep(t2)
	if !s.AllThreadsSleeping() {
		t.Error("AllThreadsSleeping() = false, want true: only sleepers remain")
	}

	s.RemoveThread(t1)
	s.RemoveThread(t2)
	if s.AllThreadsSleeping() {
		t.Error("AllThreadsSleeping() = true with no schedulable threads")
	}
}

// TestNext tests oracle-driven selection over the enabled set.
func TestNext(t *testing.T) {
	s := New()
	if got := s.Next(fuzzer.NewRandom(0)); got != nil {
		t.Errorf("Next() on empty scheduler = %v, want nil", got)
	}

	th := threads.New(1)
	s.AddThread(th)
	if got := s.Next(fuzzer.NewRandom(0)); got != th {
		t.Errorf("Next() = %v, want the only enabled thread", got)
	}

	s.RemoveThread(th)
	if got := s.Next(fuzzer.NewRandom(0)); got != nil {
		t.Errorf("Next() after RemoveThread = %v, want nil", got)
	}
}
