package execution

import (
	"fmt"

	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/threads"
)

// mutexState is the modeled state of one mutex.
type mutexState struct {
	// locked is the owning thread, nil when the mutex is free.
	locked *threads.Thread
}

// mutexStateFor returns the state of the mutex an action operates on,
// creating it on first use. A wait carries its mutex in the value slot;
// every other mutex operation addresses it directly.
func (ex *Execution) mutexStateFor(curr *action.Action) *mutexState {
	loc := curr.Location()
	if curr.IsWait() {
		loc = uintptr(curr.Value())
	}
	state, ok := ex.mutexMap[loc]
	if !ok {
		state = &mutexState{}
		ex.mutexMap[loc] = state
	}
	return state
}

// MutexOwner returns the thread currently holding the mutex at loc, or
// nil when it is free. Hosts use it to record what a blocked lock waits
// on.
func (ex *Execution) MutexOwner(loc uintptr) *threads.Thread {
	if state, ok := ex.mutexMap[loc]; ok {
		return state.locked
	}
	return nil
}

// wakeLockWaiters re-enables every thread blocked trying to lock the
// mutex the current thread just released.
func (ex *Execution) wakeLockWaiters(curr *action.Action) {
	currThrd := ex.ThreadFor(curr)
	mutexLoc := curr.Location()
	if curr.IsWait() {
		mutexLoc = uintptr(curr.Value())
	}
	for tid := 0; tid < ex.NumThreads(); tid++ {
		t := ex.Thread(tid)
		if t == nil || t.WaitingOn() != currThrd {
			continue
		}
		if pending := t.Pending(); pending != nil && pending.IsLock() && pending.Location() == mutexLoc {
			ex.scheduler.Wake(t)
		}
	}
}

// processMutex handles lock, trylock, unlock, wait, timed-wait and the
// notify operations.
//
// A trylock on a held mutex fails with return value 0 and otherwise falls
// through to the lock case. A lock has already been checked enabled, so
// it takes ownership and synchronizes with the previous release of the
// mutex. Unlock and timed-wait release the mutex after waking every
// thread blocked locking it. A wait does the same release, then asks the
// oracle whether to actually block; if so, the action joins the condition
// variable's waiter list and the thread goes to sleep. Notify-all wakes
// and clears the entire waiter list; notify-one wakes exactly the waiter
// the oracle picks, leaving the list otherwise unchanged. Reports
// whether synchronization was updated.
func (ex *Execution) processMutex(curr *action.Action) bool {
	state := ex.mutexStateFor(curr)

	switch curr.Kind() {
	case action.Trylock, action.Lock:
		if curr.Kind() == action.Trylock {
			success := state.locked == nil
			curr.SetTrylockResult(success)
			ex.ThreadFor(curr).SetReturnValue(curr.ReturnValue())
			if !success {
				break
			}
		}
		state.locked = ex.ThreadFor(curr)
		// Synchronize with the previous unlock of this mutex.
		if unlock := ex.lastUnlock(curr); unlock != nil {
			ex.synchronize(unlock, curr)
			return true
		}

	case action.Wait:
		ex.wakeLockWaiters(curr)
		// Release the lock, after checking who was waiting on it.
		state.locked = nil

		if ex.oracle.ShouldWait(curr) {
			loc := curr.Location()
			ex.condvarWaitersMap[loc] = append(ex.condvarWaitersMap[loc], curr)
			ex.scheduler.Sleep(ex.ThreadFor(curr))
		}

	case action.TimedWait, action.Unlock:
		// A timed wait releases the mutex like an unlock; whether it
		// should be able to block like a plain wait is an open question
		// in the memory model this engine follows.
		ex.wakeLockWaiters(curr)
		state.locked = nil

	case action.NotifyAll:
		for _, waiter := range ex.condvarWaitersMap[curr.Location()] {
			ex.scheduler.Wake(ex.ThreadFor(waiter))
		}
		delete(ex.condvarWaitersMap, curr.Location())

	case action.NotifyOne:
		// Only the selected thread is woken; the waiter list is left
		// unchanged.
		waiters := ex.condvarWaitersMap[curr.Location()]
		if len(waiters) != 0 {
			index := ex.oracle.SelectNotify(waiters)
			if index >= 0 && index < len(waiters) {
				ex.scheduler.Wake(ex.ThreadFor(waiters[index]))
			}
		}

	default:
		panic(fmt.Sprintf("execution: unknown mutex operation %s", curr.Kind()))
	}
	return false
}
