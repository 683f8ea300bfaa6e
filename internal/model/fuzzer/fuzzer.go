// Package fuzzer defines the oracle interface through which an exploration
// strategy steers an execution, together with the default randomized
// strategy and a record/replay pair used to reproduce executions.
//
// The engine consults the oracle whenever the memory model leaves a choice
// open: which legal write a read observes, which waiter a notify-one
// wakes, which enabled thread runs next, and whether sleep-like operations
// block. The engine never mutates oracle state; an oracle may observe the
// execution through the read-only Engine view it receives at registration.
package fuzzer

import (
	"math/rand"

	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/threads"
)

// Engine is the read-only view of the execution handed to an oracle at
// registration time.
type Engine interface {
	// Thread resolves a thread id.
	Thread(tid int) *threads.Thread
	// NumThreads is the number of threads allocated so far.
	NumThreads() int
	// MoMayAllow reports whether modification order permits reader to
	// observe writer; strategies may use it to pre-filter candidates.
	MoMayAllow(writer, reader *action.Action) bool
}

// History is the inter-execution record a strategy may consult. The
// execution core never constructs or inspects one; it is owned by the
// host model checker and may be nil.
type History interface{}

// Oracle ranks the legal choices the memory model leaves open. Every
// method must be deterministic per call for a fixed oracle state, so that
// replaying the same choices reproduces the same execution.
type Oracle interface {
	// SelectWrite picks an index into rfSet for the read to read from,
	// or -1 if no candidate is acceptable. Rejected candidates are
	// removed by the engine and SelectWrite is asked again.
	SelectWrite(read *action.Action, rfSet []*action.Action) int

	// SelectThread picks the next thread to run among the enabled ones.
	SelectThread(candidates []*threads.Thread) *threads.Thread

	// SelectNotify picks the index of the waiter a notify-one wakes.
	SelectNotify(waiters []*action.Action) int

	// ShouldSleep reports whether a thread-sleep action blocks at all.
	ShouldSleep(sleep *action.Action) bool
	// ShouldWake reports whether a sleeping thread's pending sleep may
	// end now.
	ShouldWake(sleep *action.Action) bool
	// ShouldWait reports whether a condition-variable wait actually
	// blocks; returning false models a spurious wakeup.
	ShouldWait(wait *action.Action) bool

	// HasPausedThreads reports whether the oracle is holding threads
	// back (a strategy that postpones reads may pause their threads).
	HasPausedThreads() bool
	// NotifyPausedThread tells the oracle a paused thread must be
	// reconsidered.
	NotifyPausedThread(t *threads.Thread)

	// RegisterEngine hands the oracle its read-only view of the
	// execution before the first step.
	RegisterEngine(history History, engine Engine)
}

// Random is the default exploration strategy: every choice is uniform
// over the legal candidates, driven by a seeded source so a run is
// reproducible from its seed.
type Random struct {
	rng    *rand.Rand
	engine Engine
}

// NewRandom creates a randomized oracle with the given seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) SelectWrite(_ *action.Action, rfSet []*action.Action) int {
	if len(rfSet) == 0 {
		return -1
	}
	return r.rng.Intn(len(rfSet))
}

func (r *Random) SelectThread(candidates []*threads.Thread) *threads.Thread {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[r.rng.Intn(len(candidates))]
}

func (r *Random) SelectNotify(waiters []*action.Action) int {
	if len(waiters) == 0 {
		return -1
	}
	return r.rng.Intn(len(waiters))
}

func (r *Random) ShouldSleep(*action.Action) bool { return true }

// ShouldWake flips a coin: the modeled clock has no real time, so a sleep
// may end whenever an observable event gives the engine a reason to ask.
func (r *Random) ShouldWake(*action.Action) bool { return r.rng.Intn(2) == 1 }

func (r *Random) ShouldWait(*action.Action) bool { return r.rng.Intn(2) == 1 }

func (r *Random) HasPausedThreads() bool { return false }
func (r *Random) NotifyPausedThread(*threads.Thread) {}
func (r *Random) RegisterEngine(_ History, engine Engine) { r.engine = engine }
