// Package execution implements the execution core of the model checker:
// it drives one feasible interleaving of the modeled program, processing
// one atomic action at a time.
//
// For every read the engine chooses a write to read from consistent with
// the C++11 memory model, maintains the modification-order graph, tracks
// happens-before through per-thread clock vectors, wakes sleeping threads
// when observable events require it, and reports the next thread to run
// back to the cooperative scheduler.
//
// The engine is strictly single-threaded: TakeStep is not reentrant, and
// all bookkeeping (action trace, per-object and per-thread indices,
// last-action and last-fence caches) is mutated only while a step is in
// flight.
package execution

import (
	"io"
	"os"

	"v.io/x/lib/vlog"

	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/clockvector"
	"github.com/wintered/c11tester/internal/model/cyclegraph"
	"github.com/wintered/c11tester/internal/model/fuzzer"
	"github.com/wintered/c11tester/internal/model/scheduler"
	"github.com/wintered/c11tester/internal/model/threads"
)

// Params configures an execution.
type Params struct {
	// UninitValue is the value an atomic read observes when it precedes
	// every write to its location.
	UninitValue uint64
}

// BugMessage is one bug reported against the current execution.
type BugMessage struct {
	Msg string
}

func (b *BugMessage) String() string { return b.Msg }

// nonatomicStore is the shadow record of a plain store the host reported;
// it becomes a real write action lazily, on the first atomic read of the
// location.
type nonatomicStore struct {
	tid   int
	clock uint32
	value uint64
}

// Execution holds all state of a single modeled execution.
type Execution struct {
	params Params

	scheduler *scheduler.Scheduler
	oracle    fuzzer.Oracle

	// actionTrace is the total order of all actions by sequence number.
	actionTrace []*action.Action

	threadMap      []*threads.Thread
	pthreadMap     []*threads.Thread
	pthreadCounter uint32

	// objMap orders all actions per location; fences share the
	// FenceLocation slot.
	objMap map[uintptr][]*action.Action
	// objThrdMap orders actions per location and thread.
	objThrdMap map[uintptr][][]*action.Action
	// objWrThrdMap orders writes only, per location and thread.
	objWrThrdMap map[uintptr][][]*action.Action
	// objLastSCMap caches the latest seq-cst write per location.
	objLastSCMap map[uintptr]*action.Action

	condvarWaitersMap map[uintptr][]*action.Action
	mutexMap          map[uintptr]*mutexState

	thrdLastAction       []*action.Action
	thrdLastFenceRelease []*action.Action

	nonatomicStores map[uintptr]nonatomicStore

	nextThreadID        int
	usedSequenceNumbers uint32

	bugs     []*BugMessage
	asserted bool

	moGraph *cyclegraph.Graph

	modelThread *threads.Thread
	initThread  *threads.Thread

	finished        bool
	executionNumber int

	out io.Writer
}

// New creates an execution with its model thread and the initial user
// thread already allocated, and registers the oracle's read-only view.
// Trace summaries go to out; pass nil for os.Stdout.
func New(params Params, sched *scheduler.Scheduler, oracle fuzzer.Oracle, out io.Writer) *Execution {
	if out == nil {
		out = os.Stdout
	}
	ex := &Execution{
		params:            params,
		scheduler:         sched,
		oracle:            oracle,
		objMap:            make(map[uintptr][]*action.Action),
		objThrdMap:        make(map[uintptr][][]*action.Action),
		objWrThrdMap:      make(map[uintptr][][]*action.Action),
		objLastSCMap:      make(map[uintptr]*action.Action),
		condvarWaitersMap: make(map[uintptr][]*action.Action),
		mutexMap:          make(map[uintptr]*mutexState),
		nonatomicStores:   make(map[uintptr]nonatomicStore),
		pthreadCounter:    1,
		pthreadMap:        make([]*threads.Thread, 1),
		moGraph:           cyclegraph.New(),
		out:               out,
	}
	ex.modelThread = threads.NewModelThread(ex.nextID())
	ex.addThread(ex.modelThread)
	ex.initThread = threads.New(ex.nextID())
	ex.addThread(ex.initThread)
	oracle.RegisterEngine(nil, ex)
	return ex
}

// nextID hands out the next thread id.
func (ex *Execution) nextID() int {
	id := ex.nextThreadID
	ex.nextThreadID++
	return id
}

// NumThreads returns the number of threads allocated so far, the model
// thread included.
func (ex *Execution) NumThreads() int { return ex.nextThreadID }

func (ex *Execution) nextSeqNum() uint32 {
	ex.usedSequenceNumbers++
	return ex.usedSequenceNumbers
}

// RestoreLastSeqNum gives back the most recently allocated sequence
// number, used when an action is postponed instead of executed.
func (ex *Execution) RestoreLastSeqNum() {
	ex.usedSequenceNumbers--
}

// addThread registers a thread with the execution and, unless it is the
// model thread, with the scheduler.
func (ex *Execution) addThread(t *threads.Thread) {
	for t.ID() >= len(ex.threadMap) {
		ex.threadMap = append(ex.threadMap, nil)
	}
	ex.threadMap[t.ID()] = t
	if !t.IsModelThread() {
		ex.scheduler.AddThread(t)
	}
}

// Thread resolves a thread id; unknown ids yield nil.
func (ex *Execution) Thread(tid int) *threads.Thread {
	if tid < 0 || tid >= len(ex.threadMap) {
		return nil
	}
	return ex.threadMap[tid]
}

// ThreadFor returns the thread that issued act.
func (ex *Execution) ThreadFor(act *action.Action) *threads.Thread {
	return ex.Thread(act.TID())
}

// InitThread returns the initial user thread.
func (ex *Execution) InitThread() *threads.Thread { return ex.initThread }

// ModelThread returns the model-checker thread owning synthetic actions.
func (ex *Execution) ModelThread() *threads.Thread { return ex.modelThread }

// Pthread resolves a user-visible pthread handle.
func (ex *Execution) Pthread(pid uint32) *threads.Thread {
	if int(pid) < len(ex.pthreadMap) {
		return ex.pthreadMap[pid]
	}
	return nil
}

// IsEnabled reports whether the thread with the given id may be
// scheduled.
func (ex *Execution) IsEnabled(tid int) bool { return ex.scheduler.IsEnabled(tid) }

// Scheduler returns the cooperative scheduler driving this execution.
func (ex *Execution) Scheduler() *scheduler.Scheduler { return ex.scheduler }

// Params returns the execution's configuration.
func (ex *Execution) Params() Params { return ex.params }

// ExecutionNumber identifies this execution in trace output.
func (ex *Execution) ExecutionNumber() int { return ex.executionNumber }
func (ex *Execution) SetExecutionNumber(n int) { ex.executionNumber = n }

func (ex *Execution) setFinished() { ex.finished = true }

// IsFinished reports whether the initial thread has finished.
func (ex *Execution) IsFinished() bool { return ex.finished }

// AssertBug records a bug against this execution and halts exploration at
// the next step boundary.
func (ex *Execution) AssertBug(msg string) {
	ex.bugs = append(ex.bugs, &BugMessage{Msg: msg})
	ex.SetAssert()
}

// HaveBugReports reports whether any bugs were recorded.
func (ex *Execution) HaveBugReports() bool { return len(ex.bugs) != 0 }

// Bugs returns the recorded bug messages.
func (ex *Execution) Bugs() []*BugMessage { return ex.bugs }

// HasAsserted reports whether the execution should be halted.
func (ex *Execution) HasAsserted() bool { return ex.asserted }

// SetAssert flags the execution for halting without recording a message.
func (ex *Execution) SetAssert() { ex.asserted = true }

// IsDeadlocked reports whether no thread is enabled while some user
// thread still has a pending action it cannot run.
func (ex *Execution) IsDeadlocked() bool {
	blocking := false
	for tid := 0; tid < ex.NumThreads(); tid++ {
		if ex.IsEnabled(tid) {
			return false
		}
		t := ex.Thread(tid)
		if t != nil && !t.IsModelThread() && t.Pending() != nil {
			blocking = true
		}
	}
	return blocking
}

// IsCompleteExecution reports whether no thread is enabled any more. This
// holds when every thread ran to completion and also when the remaining
// threads are all blocked, as in a deadlock; a thread in the sleep set
// counts as enabled.
func (ex *Execution) IsCompleteExecution() bool {
	for tid := 0; tid < ex.NumThreads(); tid++ {
		if ex.IsEnabled(tid) {
			return false
		}
	}
	return true
}

// shouldWakeUp decides whether the current action wakes a given sleeping
// thread. Partial RMWs never wake anyone; otherwise a sleeper wakes when
// its pending action could synchronize with curr, when it is an acquire
// fence and curr releases, when it is an acquire load on the variable a
// write just hit and a release fence of the writer's thread dominates the
// sleeper's last action, or when it is a plain sleep the oracle ends.
func (ex *Execution) shouldWakeUp(curr *action.Action, t *threads.Thread) bool {
	asleep := t.Pending()
	if curr.IsRMWR() {
		return false
	}
	if asleep.CouldSynchronizeWith(curr) {
		return true
	}
	if asleep.IsFence() && asleep.IsAcquire() && curr.IsRelease() {
		return true
	}
	if asleep.IsRead() && asleep.IsAcquire() && curr.SameVar(asleep) && curr.IsWrite() {
		fenceRelease := ex.lastFenceRelease(curr.TID())
		last := ex.lastAction(t.ID())
		if fenceRelease != nil && last != nil && last.SeqLess(fenceRelease) {
			return true
		}
	}
	if asleep.IsSleep() && ex.oracle.ShouldWake(asleep) {
		return true
	}
	return false
}

func (ex *Execution) wakeUpSleepingActions(curr *action.Action) {
	for tid := 0; tid < ex.NumThreads(); tid++ {
		t := ex.Thread(tid)
		if t == nil || !ex.scheduler.IsSleepSet(t) {
			continue
		}
		if ex.shouldWakeUp(curr, t) {
			ex.scheduler.RemoveSleep(t)
			if t.Pending().IsSleep() {
				t.SetWakeupState(true)
			}
		}
	}
}

// CheckActionEnabled reports whether the action would succeed right now:
// a lock on a held mutex, a join on a running thread and a sleep the
// oracle does not admit are all disabled.
func (ex *Execution) CheckActionEnabled(curr *action.Action) bool {
	switch {
	case curr.IsLock():
		if ex.mutexStateFor(curr).locked != nil {
			return false
		}
	case curr.IsThreadJoin():
		blocking := ex.Thread(curr.ThreadOperand())
		if blocking == nil || !blocking.IsComplete() {
			return false
		}
	case curr.IsSleep():
		if !ex.oracle.ShouldSleep(curr) {
			return false
		}
	}
	return true
}

// TakeStep performs one step of the execution: it runs curr through the
// engine and returns the action actually executed (RMW fusion may
// substitute it) together with the thread that must run next, or nil when
// the scheduler decides.
func (ex *Execution) TakeStep(curr *action.Action) (*action.Action, *threads.Thread) {
	currThrd := ex.ThreadFor(curr)
	curr = ex.checkCurrentAction(curr)
	if currThrd.IsBlocked() || currThrd.IsComplete() {
		ex.scheduler.RemoveThread(currThrd)
	}
	return curr, ex.actionSelectNextThread(curr)
}

// checkCurrentAction is the heart of the engine: it initializes the
// action, wakes observers, resolves reads-from, inserts the action into
// all indices and dispatches kind-specific processing.
func (ex *Execution) checkCurrentAction(curr *action.Action) *action.Action {
	secondPartOfRMW := curr.IsRMWC() || curr.IsRMW()
	curr, newlyExplored := ex.initializeCurrAction(curr)

	vlog.VI(2).Infof("execution %d: step %s", ex.executionNumber, curr)

	ex.wakeUpSleepingActions(curr)

	if !secondPartOfRMW {
		ex.addUninitActionToLists(curr)
	}

	var rfSet []*action.Action
	if newlyExplored && curr.IsRead() {
		rfSet = ex.buildMayReadFrom(curr)
	}

	if curr.IsRead() && !secondPartOfRMW {
		if !ex.processRead(curr, rfSet) {
			// No feasible write remained: the read is postponed, not
			// added. Give back its sequence number so the trace stays
			// dense; a zero sequence number marks the paused action.
			ex.RestoreLastSeqNum()
			curr.SetSeq(0)
			return curr
		}
	}

	if !secondPartOfRMW {
		ex.addActionToLists(curr)
	}
	if curr.IsWrite() {
		ex.addWriteToLists(curr)
	}

	ex.processThreadAction(curr)

	if curr.IsWrite() {
		ex.processWrite(curr)
	}
	if curr.IsFence() {
		ex.processFence(curr)
	}
	if curr.IsMutexOp() {
		ex.processMutex(curr)
	}

	return curr
}

// initializeCurrAction merges RMW halves or, for newly explored actions,
// assigns the sequence number, builds the clock vector from the thread's
// parent action, and snapshots the thread's latest release fence. It
// reports whether curr is newly explored.
func (ex *Execution) initializeCurrAction(curr *action.Action) (*action.Action, bool) {
	if curr.IsRMWC() || curr.IsRMW() {
		return ex.processRMW(curr), false
	}
	curr.SetSeq(ex.nextSeqNum())
	curr.CreateCV(ex.parentAction(curr.TID()))
	curr.SetLastFenceRelease(ex.lastFenceRelease(curr.TID()))
	return curr, true
}

// processRMW closes out a pending RMW read by fusing the commit into it.
// The fused action replaces the incoming one; a successful rmw also pins
// its place in modification order right after its reads-from write.
func (ex *Execution) processRMW(act *action.Action) *action.Action {
	lastRead := ex.lastAction(act.TID())
	if lastRead == nil || !lastRead.IsRMWR() {
		panic("execution: rmw commit without a pending rmw read")
	}
	fused := lastRead.ProcessRMW(act)
	if act.IsRMW() && fused.ReadsFrom() != nil {
		ex.moGraph.AddRMWEdge(fused.ReadsFrom(), fused)
	}
	return fused
}

// processRead resolves the reads-from edge of curr. Candidates are tried
// in oracle order; each one is checked against read modification order
// and the first consistent candidate is adopted. Returns false when no
// feasible write remains.
func (ex *Execution) processRead(curr *action.Action, rfSet []*action.Action) bool {
	if _, ok := ex.nonatomicStores[curr.Location()]; ok {
		rfSet = append(rfSet, ex.convertNonAtomicStore(curr.Location()))
	}

	for {
		index := ex.oracle.SelectWrite(curr, rfSet)
		if index == -1 {
			return false
		}
		rf := rfSet[index]

		ok, priorset, canprune := ex.readModificationOrder(curr, rf)
		if ok {
			for _, prior := range priorset {
				ex.moGraph.AddEdge(prior, rf)
			}
			ex.readFrom(curr, rf)
			ex.ThreadFor(curr).SetReturnValue(curr.ReturnValue())
			if canprune && curr.Kind() == action.AtomicRead {
				// The preceding same-thread read pinned the same write,
				// so curr carries no new mo information.
				lists := ex.objThrdMap[curr.Location()]
				tid := curr.TID()
				lists[tid] = lists[tid][:len(lists[tid])-1]
			}
			return true
		}

		vlog.VI(2).Infof("execution %d: rejected rf #%d for read by t%d", ex.executionNumber, rf.Seq(), curr.TID())
		rfSet[index] = rfSet[len(rfSet)-1]
		rfSet = rfSet[:len(rfSet)-1]
	}
}

// readFrom establishes curr reads-from rf; an acquire read inherits the
// clock the write's release sequence delivers.
func (ex *Execution) readFrom(curr, rf *action.Action) {
	if !rf.IsWrite() {
		panic("execution: reads-from target is not a write")
	}
	curr.SetReadsFrom(rf)
	if curr.IsAcquire() {
		if cv := ex.hbFromWrite(rf); cv != nil {
			curr.CV().Merge(cv)
		}
	}
}

// synchronize establishes first --sw-> second: second inherits first's
// clock vector. Synchronizing against a later action is a model bug.
func (ex *Execution) synchronize(first, second *action.Action) bool {
	if second.SeqLess(first) {
		panic("execution: synchronization against a later action")
	}
	return second.CV().Merge(first.CV())
}

// processWrite runs write modification order; stores produce no value.
func (ex *Execution) processWrite(curr *action.Action) {
	ex.writeModificationOrder(curr)
	ex.ThreadFor(curr).SetReturnValue(action.ValueNone)
}

// processFence handles fence semantics. A relaxed fence is a no-op and a
// release fence only logs itself for later synchronization; seq-cst
// fences contribute through the modification-order algorithms. An
// acquire fence walks its thread's earlier actions and adopts the release
// sequences of every plain read it passes, stopping at the thread start
// or a prior acquire fence. Reports whether the fence's clock grew.
func (ex *Execution) processFence(curr *action.Action) bool {
	updated := false
	if curr.IsAcquire() {
		for i := len(ex.actionTrace) - 1; i >= 0; i-- {
			act := ex.actionTrace[i]
			if act == curr {
				continue
			}
			if act.TID() != curr.TID() {
				continue
			}
			if act.Kind() == action.ThreadStart {
				break
			}
			if act.IsFence() && act.IsAcquire() {
				break
			}
			if !act.IsRead() {
				continue
			}
			// An acquire read found its release sequences on its own.
			if act.IsAcquire() {
				continue
			}
			if act.ReadsFrom() == nil {
				continue
			}
			cv := ex.hbFromWrite(act.ReadsFrom())
			if cv != nil && curr.CV().Merge(cv) {
				updated = true
			}
		}
	}
	return updated
}

// actionSelectNextThread reports the thread the current action forces to
// run next: the same thread for an unpaused RMW read (the two halves must
// not be split) and the child for thread creation. Nil means the
// scheduler decides.
func (ex *Execution) actionSelectNextThread(curr *action.Action) *threads.Thread {
	if curr.IsRMWR() && !pausedByFuzzer(curr) {
		return ex.ThreadFor(curr)
	}
	if curr.Kind() == action.ThreadCreate || curr.Kind() == action.PthreadCreate {
		return ex.Thread(curr.ThreadOperand())
	}
	return nil
}

// pausedByFuzzer recognizes actions the oracle postponed; their sequence
// number was given back.
func pausedByFuzzer(act *action.Action) bool { return act.Seq() == 0 }

// lastAction returns the most recent action of a thread.
func (ex *Execution) lastAction(tid int) *action.Action {
	if tid < 0 || tid >= len(ex.thrdLastAction) {
		return nil
	}
	return ex.thrdLastAction[tid]
}

// lastFenceRelease returns the most recent release fence of a thread.
func (ex *Execution) lastFenceRelease(tid int) *action.Action {
	if tid < 0 || tid >= len(ex.thrdLastFenceRelease) {
		return nil
	}
	return ex.thrdLastFenceRelease[tid]
}

// lastSCWrite returns the latest seq-cst write to curr's location.
func (ex *Execution) lastSCWrite(curr *action.Action) *action.Action {
	return ex.objLastSCMap[curr.Location()]
}

// lastSCFence returns the latest seq-cst fence of thread tid or, when
// before is non-nil, the latest one strictly before that fence.
func (ex *Execution) lastSCFence(tid int, before *action.Action) *action.Action {
	list := ex.objMap[action.FenceLocation]
	i := len(list) - 1
	if before != nil {
		for ; i >= 0; i-- {
			if list[i] == before {
				break
			}
		}
		i--
	}
	for ; i >= 0; i-- {
		act := list[i]
		if act.IsFence() && act.TID() == tid && act.IsSeqCst() {
			return act
		}
	}
	return nil
}

// lastUnlock returns the most recent operation that released curr's
// mutex: an unlock or a wait.
func (ex *Execution) lastUnlock(curr *action.Action) *action.Action {
	list := ex.objMap[curr.Location()]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].IsUnlock() || list[i].IsWait() {
			return list[i]
		}
	}
	return nil
}

// parentAction returns the action a thread's next clock vector descends
// from: its last action, or its creation when it has not acted yet.
func (ex *Execution) parentAction(tid int) *action.Action {
	if parent := ex.lastAction(tid); parent != nil {
		return parent
	}
	if t := ex.Thread(tid); t != nil {
		return t.Creation()
	}
	return nil
}

// CV returns the clock vector summarizing a thread's happens-before
// knowledge: that of its last action or, before it has acted, that of
// the action that created it. It is nil when the thread has neither.
func (ex *Execution) CV(tid int) *clockvector.ClockVector {
	if first := ex.parentAction(tid); first != nil {
		return first.CV()
	}
	return nil
}

// ActionTrace exposes the total order of executed actions. Read-only.
func (ex *Execution) ActionTrace() []*action.Action { return ex.actionTrace }

// MoGraphHasCycles reports whether the modification-order graph ever
// refused an edge; it must stay false on every feasible execution.
func (ex *Execution) MoGraphHasCycles() bool { return ex.moGraph.HasCycles() }

// CondvarWaiters exposes the threads currently waiting on a condition
// variable. Read-only.
func (ex *Execution) CondvarWaiters(loc uintptr) []*action.Action {
	return ex.condvarWaitersMap[loc]
}

// RecordNonatomicStore registers a plain store the host observed outside
// the atomic protocol. The store becomes a real write lazily: the first
// atomic read of the location (an rmw included) converts it into a
// nonatomic-write action spliced into every index at the sequence number
// it would have had. An atomic store to the location does not convert it;
// the record stays pending until a read.
func (ex *Execution) RecordNonatomicStore(loc uintptr, tid int, clock uint32, value uint64) {
	ex.nonatomicStores[loc] = nonatomicStore{tid: tid, clock: clock, value: value}
}
