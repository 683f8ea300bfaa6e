// Package threads models the threads of the program under test. These are
// not native threads: the execution core schedules them cooperatively, one
// action at a time, and all state lives in plain fields mutated by the
// single-threaded engine.
package threads

import (
	"fmt"

	"github.com/wintered/c11tester/internal/model/action"
)

// State is a modeled thread's lifecycle state.
type State int

const (
	Created State = iota
	Ready
	Running
	Blocked
	Completed
)

// Thread is one modeled thread.
type Thread struct {
	id    int
	state State

	// model marks the special model-checker thread that owns synthetic
	// actions such as uninitialized stores. It is never scheduled.
	model bool

	parent   *Thread
	creation *action.Action

	// pending is the next action this thread wants to run while it is
	// blocked or asleep; the host resubmits it once the thread wakes.
	pending *action.Action
	// waitingOn is the thread whose progress unblocks this one: the lock
	// owner for a blocked lock, the joined thread for a blocked join.
	waitingOn *Thread

	// wakeupState is set when an observable event ended this thread's
	// sleep early, so the pending sleep resumes instead of re-sleeping.
	wakeupState bool

	pthreadID   uint32
	returnValue uint64
}

// New creates a thread with the given id.
func New(id int) *Thread {
	return &Thread{id: id, state: Created}
}

// NewModelThread creates the model-checker thread. It owns synthetic
// actions and is excluded from scheduling and deadlock accounting.
func NewModelThread(id int) *Thread {
	return &Thread{id: id, state: Ready, model: true}
}

func (t *Thread) ID() int { return t.id }
func (t *Thread) IsModelThread() bool { return t.model }

func (t *Thread) State() State { return t.state }
func (t *Thread) SetState(state State) { t.state = state }
func (t *Thread) IsBlocked() bool { return t.state == Blocked }
func (t *Thread) IsComplete() bool { return t.state == Completed }

// Complete marks the thread finished.
func (t *Thread) Complete() { t.state = Completed }

func (t *Thread) Parent() *Thread { return t.parent }
func (t *Thread) SetParent(parent *Thread) { t.parent = parent }

func (t *Thread) Creation() *action.Action { return t.creation }
func (t *Thread) SetCreation(act *action.Action) { t.creation = act }
func (t *Thread) Pending() *action.Action { return t.pending }
func (t *Thread) SetPending(act *action.Action) { t.pending = act }
func (t *Thread) WaitingOn() *Thread { return t.waitingOn }
func (t *Thread) SetWaitingOn(blocking *Thread) { t.waitingOn = blocking }

func (t *Thread) WakeupState() bool { return t.wakeupState }
func (t *Thread) SetWakeupState(wake bool) { t.wakeupState = wake }

func (t *Thread) PthreadID() uint32 { return t.pthreadID }
func (t *Thread) SetPthreadID(pid uint32) { t.pthreadID = pid }

// SetReturnValue records the value the thread's last modeled operation
// reports back to the program.
func (t *Thread) SetReturnValue(v uint64) { t.returnValue = v }
func (t *Thread) ReturnValue() uint64 { return t.returnValue }

func (t *Thread) String() string {
	return fmt.Sprintf("t%d", t.id)
}
