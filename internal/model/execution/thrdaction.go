package execution

import (
	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/threads"
)

// processThreadAction performs thread-lifecycle processing: allocating
// threads for create actions, completing join synchronization, waking
// joiners on finish and parking sleepers. Non-thread actions pass through
// untouched.
func (ex *Execution) processThreadAction(curr *action.Action) {
	switch curr.Kind() {
	case action.ThreadCreate:
		th := threads.New(ex.nextID())
		th.SetParent(ex.ThreadFor(curr))
		curr.SetThreadOperand(th.ID())
		ex.addThread(th)
		th.SetCreation(curr)

	case action.PthreadCreate:
		th := threads.New(ex.nextID())
		th.SetParent(ex.ThreadFor(curr))
		curr.SetThreadOperand(th.ID())
		ex.addThread(th)
		th.SetCreation(curr)

		// The user-visible handle is the pthread counter value, reported
		// back through the action.
		handle := ex.pthreadCounter
		ex.pthreadCounter++
		th.SetPthreadID(handle)
		curr.SetValue(uint64(handle))
		for uint32(len(ex.pthreadMap)) < ex.pthreadCounter {
			ex.pthreadMap = append(ex.pthreadMap, nil)
		}
		ex.pthreadMap[handle] = th

	case action.ThreadJoin, action.PthreadJoin:
		blocking := ex.Thread(curr.ThreadOperand())
		if blocking != nil {
			if last := ex.lastAction(blocking.ID()); last != nil {
				ex.synchronize(last, curr)
			}
		}

	case action.ThreadFinish:
		th := ex.ThreadFor(curr)
		if th == ex.initThread {
			th.Complete()
			ex.setFinished()
			break
		}
		// Wake up any joining threads.
		for tid := 0; tid < ex.NumThreads(); tid++ {
			waiting := ex.Thread(tid)
			if waiting == nil || waiting.WaitingOn() != th {
				continue
			}
			if pending := waiting.Pending(); pending != nil && pending.IsThreadJoin() {
				ex.scheduler.Wake(waiting)
			}
		}
		th.Complete()

	case action.ThreadStart:
		// Bookkeeping happened at initialization; nothing more to do.

	case action.ThreadSleep:
		th := ex.ThreadFor(curr)
		th.SetPending(curr)
		ex.scheduler.AddSleep(th)
	}
}
