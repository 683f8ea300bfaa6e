package execution

import (
	"io"
	"strings"
	"testing"

	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/fuzzer"
	"github.com/wintered/c11tester/internal/model/scheduler"
	"github.com/wintered/c11tester/internal/model/threads"
)

// scriptedOracle makes engine tests deterministic: reads observe queued
// values, notify-one wakes queued indices, waits block per queued
// answers. Unqueued decisions take the first candidate.
type scriptedOracle struct {
	writeValues  []uint64
	notifyPicks  []int
	waitAnswers  []bool
	failNextRead bool
}

func (o *scriptedOracle) SelectWrite(_ *action.Action, rfSet []*action.Action) int {
	if o.failNextRead {
		o.failNextRead = false
		return -1
	}
	if len(rfSet) == 0 {
		return -1
	}
	if len(o.writeValues) > 0 {
		want := o.writeValues[0]
		o.writeValues = o.writeValues[1:]
		for i, w := range rfSet {
			if w.Value() == want {
				return i
			}
		}
	}
	return 0
}

func (o *scriptedOracle) SelectThread(candidates []*threads.Thread) *threads.Thread {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

func (o *scriptedOracle) SelectNotify(waiters []*action.Action) int {
	if len(o.notifyPicks) > 0 {
		pick := o.notifyPicks[0]
		o.notifyPicks = o.notifyPicks[1:]
		return pick
	}
	return 0
}

func (o *scriptedOracle) ShouldSleep(*action.Action) bool { return true }
func (o *scriptedOracle) ShouldWake(*action.Action) bool { return false }

func (o *scriptedOracle) ShouldWait(*action.Action) bool {
	if len(o.waitAnswers) > 0 {
		ans := o.waitAnswers[0]
		o.waitAnswers = o.waitAnswers[1:]
		return ans
	}
	return true
}

func (o *scriptedOracle) HasPausedThreads() bool { return false }
func (o *scriptedOracle) NotifyPausedThread(*threads.Thread) {}
func (o *scriptedOracle) RegisterEngine(fuzzer.History, fuzzer.Engine) {}

type harness struct {
	t      *testing.T
	oracle *scriptedOracle
	sched  *scheduler.Scheduler
	ex     *Execution
}

func newHarness(t *testing.T) *harness {
	return newHarnessParams(t, Params{})
}

func newHarnessParams(t *testing.T, params Params) *harness {
	oracle := &scriptedOracle{}
	sched := scheduler.New()
	return &harness{
		t:      t,
		oracle: oracle,
		sched:  sched,
		ex:     New(params, sched, oracle, io.Discard),
	}
}

// spawn creates a new modeled thread from the initial thread and returns
// its id.
func (h *harness) spawn() int {
	create := action.New(action.ThreadCreate, action.Relaxed, h.ex.InitThread().ID(), 0, 0)
	stepped, next := h.ex.TakeStep(create)
	if next == nil || next.ID() != stepped.ThreadOperand() {
		h.t.Fatalf("thread create did not force the child to run next")
	}
	return stepped.ThreadOperand()
}

// step runs one action through the engine and returns the action
// actually executed.
func (h *harness) step(kind action.Kind, order action.Ordering, tid int, loc uintptr, value uint64) *action.Action {
	stepped, _ := h.ex.TakeStep(action.New(kind, order, tid, loc, value))
	return stepped
}

// checkTraceOrdered verifies that the trace is totally ordered by
// sequence number.
func (h *harness) checkTraceOrdered() {
	trace := h.ex.ActionTrace()
	for i := 1; i < len(trace); i++ {
		if trace[i-1].Seq() > trace[i].Seq() {
			h.t.Errorf("action trace out of order at %d: seq %d before %d",
				i, trace[i-1].Seq(), trace[i].Seq())
		}
	}
}

const (
	locX    = uintptr(0x1000)
	locY    = uintptr(0x1008)
	locData = uintptr(0x1010)
	locFlag = uintptr(0x1018)
	locM1   = uintptr(0x2000)
	locM2   = uintptr(0x2008)
	locCV   = uintptr(0x3000)
)

// TestStoreBufferingBothReadsStale tests the store-buffering litmus: with
// relaxed coherence both threads may read the initial value even after
// both writes executed.
func TestStoreBufferingBothReadsStale(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	h.step(action.AtomicWrite, action.Release, t1, locX, 1)
	h.step(action.AtomicWrite, action.Release, t2, locY, 1)

	h.oracle.writeValues = []uint64{0, 0}
	r1 := h.step(action.AtomicRead, action.Acquire, t1, locY, 0)
	r2 := h.step(action.AtomicRead, action.Acquire, t2, locX, 0)

	if got := r1.ReadsFrom().Value(); got != 0 {
		t.Errorf("t1 read of y = %d, want 0 (uninitialized)", got)
	}
	if got := r2.ReadsFrom().Value(); got != 0 {
		t.Errorf("t2 read of x = %d, want 0 (uninitialized)", got)
	}
	if h.ex.MoGraphHasCycles() {
		t.Error("mo-graph reported a cycle on a feasible execution")
	}
	h.checkTraceOrdered()
}

// TestMessagePassingRejectsStaleData tests that once the consumer
// acquired the flag, reading the stale data value is infeasible: the
// engine discards the rejected candidate and retries.
func TestMessagePassingRejectsStaleData(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	w := h.step(action.AtomicWrite, action.Relaxed, t1, locData, 42)
	h.step(action.AtomicWrite, action.Release, t1, locFlag, 1)

	h.oracle.writeValues = []uint64{1}
	rFlag := h.step(action.AtomicRead, action.Acquire, t2, locFlag, 0)
	if got := rFlag.ReadsFrom().Value(); got != 1 {
		t.Fatalf("flag read = %d, want 1", got)
	}

	// First ask for the stale value; the engine must reject it and ask
	// again.
	h.oracle.writeValues = []uint64{0, 42}
	rData := h.step(action.AtomicRead, action.Relaxed, t2, locData, 0)

	if got := rData.ReadsFrom().Value(); got != 42 {
		t.Errorf("data read = %d, want 42: stale candidate not rejected", got)
	}
	if !w.HappensBefore(rData) {
		t.Error("data write does not happen before the read after acquire sync")
	}
	if h.ex.MoGraphHasCycles() {
		t.Error("mo-graph reported a cycle")
	}
}

// TestRMWChainDeliversReleaseClock tests release sequences across an rmw
// chain: an acquire read of a relaxed rmw inherits the clock of the
// release write the rmw consumed.
func TestRMWChainDeliversReleaseClock(t *testing.T) {
	h := newHarness(t)
	t1, t2, t3 := h.spawn(), h.spawn(), h.spawn()

	w1 := h.step(action.AtomicWrite, action.Release, t1, locX, 1)

	h.oracle.writeValues = []uint64{1}
	rmwRead, next := h.ex.TakeStep(action.New(action.AtomicRMWR, action.Relaxed, t2, locX, 0))
	if next == nil || next.ID() != t2 {
		t.Fatal("rmw read did not force its own thread to continue")
	}
	fused := h.step(action.AtomicRMW, action.Relaxed, t2, locX, 2)
	if fused != rmwRead {
		t.Error("rmw commit did not fuse into the pending rmw read")
	}
	if fused.Kind() != action.AtomicRMW {
		t.Errorf("fused kind = %v, want AtomicRMW", fused.Kind())
	}

	h.oracle.writeValues = []uint64{2}
	r := h.step(action.AtomicRead, action.Acquire, t3, locX, 0)

	if got := r.ReadsFrom(); got != fused {
		t.Fatalf("acquire read observes %v, want the fused rmw", got)
	}
	if !r.CV().SynchronizedSince(t1, w1.Seq()) {
		t.Error("acquire read of the rmw chain did not inherit the release write's clock")
	}
	if fused.RFCV() == nil {
		t.Error("release-sequence clock was not cached on the rmw")
	}
}

// TestSeqCstReadSeesOnlyLastSCWrite tests the seq-cst filter of the
// may-read-from set: with two seq-cst writes in place, a seq-cst read
// cannot observe the earlier one.
func TestSeqCstReadSeesOnlyLastSCWrite(t *testing.T) {
	h := newHarness(t)
	t1, t2, t3 := h.spawn(), h.spawn(), h.spawn()

	w1 := h.step(action.AtomicWrite, action.SeqCst, t1, locX, 1)
	w2 := h.step(action.AtomicWrite, action.SeqCst, t2, locX, 2)

	if !h.ex.moGraph.CheckReachable(w1, w2) {
		t.Error("seq-cst writes are not mo-ordered")
	}

	// Ask for the earlier seq-cst write; it must not even be a
	// candidate.
	h.oracle.writeValues = []uint64{1}
	r := h.step(action.AtomicRead, action.SeqCst, t3, locX, 0)

	if got := r.ReadsFrom().Value(); got != 2 {
		t.Errorf("seq-cst read = %d, want 2: earlier seq-cst write must be filtered", got)
	}
}

// TestUninitializedReadObservesConfiguredValue tests the synthesized
// uninitialized store and the UninitValue parameter.
func TestUninitializedReadObservesConfiguredValue(t *testing.T) {
	h := newHarnessParams(t, Params{UninitValue: 99})
	t1 := h.spawn()

	r := h.step(action.AtomicRead, action.Relaxed, t1, locX, 0)

	rf := r.ReadsFrom()
	if rf == nil || rf.Kind() != action.Uninitialized {
		t.Fatalf("read of untouched location observes %v, want the uninitialized store", rf)
	}
	if got := rf.Value(); got != 99 {
		t.Errorf("uninitialized value = %d, want 99", got)
	}
	if got := h.ex.ThreadFor(r).ReturnValue(); got != 99 {
		t.Errorf("thread return value = %d, want 99", got)
	}
}

// TestFailedCASBecomesRead tests rmw fusion of a failing compare-and-
// swap: the pending read demotes to a plain read and stays out of the
// write index.
func TestFailedCASBecomesRead(t *testing.T) {
	h := newHarness(t)
	t1 := h.spawn()

	// CAS expecting 5 against an uninitialized (0) location.
	h.step(action.AtomicRMWRCAS, action.AcqRel, t1, locX, 5)
	fused := h.step(action.AtomicRMWC, action.Relaxed, t1, locX, 0)

	if got := fused.Kind(); got != action.AtomicRead {
		t.Errorf("failed CAS fused kind = %v, want AtomicRead", got)
	}
	wrLists := h.ex.objWrThrdMap[locX]
	if t1 < len(wrLists) && len(wrLists[t1]) != 0 {
		t.Error("failed CAS landed in the write index")
	}
}

// TestSecondRMWCannotReadConsumedWrite tests rmw atomicity in the
// may-read-from set: a write another rmw consumed is no candidate.
func TestSecondRMWCannotReadConsumedWrite(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	h.oracle.writeValues = []uint64{0}
	h.step(action.AtomicRMWR, action.Relaxed, t1, locX, 0)
	first := h.step(action.AtomicRMW, action.Relaxed, t1, locX, 1)

	// Ask for the consumed uninitialized store; only the first rmw's
	// result may be offered.
	h.oracle.writeValues = []uint64{0}
	h.step(action.AtomicRMWR, action.Relaxed, t2, locX, 0)
	second := h.step(action.AtomicRMW, action.Relaxed, t2, locX, 2)

	if got := second.ReadsFrom(); got != first {
		t.Errorf("second rmw reads from %v, want the first rmw", got)
	}
}

// TestDuplicateReadPruned tests the canprune path: a second same-thread
// read pinning the same write replaces its predecessor in the per-object
// index instead of growing it.
func TestDuplicateReadPruned(t *testing.T) {
	h := newHarness(t)
	t1 := h.spawn()

	h.oracle.writeValues = []uint64{0, 0}
	h.step(action.AtomicRead, action.Relaxed, t1, locX, 0)
	second := h.step(action.AtomicRead, action.Relaxed, t1, locX, 0)

	list := h.ex.objThrdMap[locX][t1]
	if len(list) != 1 {
		t.Fatalf("per-object thread index holds %d reads, want 1 after pruning", len(list))
	}
	if list[0] != second {
		t.Error("pruning kept the older read instead of the newer one")
	}
}

// TestFenceAcquireAdoptsReleaseSequence tests the fence-release /
// fence-acquire idiom over relaxed accesses.
func TestFenceAcquireAdoptsReleaseSequence(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	w := h.step(action.AtomicWrite, action.Relaxed, t1, locData, 42)
	h.step(action.Fence, action.Release, t1, 0, 0)
	h.step(action.AtomicWrite, action.Relaxed, t1, locFlag, 1)

	h.oracle.writeValues = []uint64{1}
	h.step(action.AtomicRead, action.Relaxed, t2, locFlag, 0)
	fence := h.step(action.Fence, action.Acquire, t2, 0, 0)

	if !fence.CV().SynchronizedSince(t1, w.Seq()) {
		t.Error("acquire fence did not adopt the release sequence of the observed write")
	}
}

// TestLockSynchronizesWithPreviousUnlock tests mutex hand-off
// synchronization.
func TestLockSynchronizesWithPreviousUnlock(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	h.step(action.Lock, action.SeqCst, t1, locM1, 0)
	unlock := h.step(action.Unlock, action.SeqCst, t1, locM1, 0)

	lock := h.step(action.Lock, action.SeqCst, t2, locM1, 0)

	if !unlock.HappensBefore(lock) {
		t.Error("second lock did not synchronize with the previous unlock")
	}
	if got := h.ex.MutexOwner(locM1); got != h.ex.Thread(t2) {
		t.Errorf("mutex owner = %v, want t%d", got, t2)
	}
}

// TestTrylockFailsOnHeldMutex tests the trylock fast-fail path.
func TestTrylockFailsOnHeldMutex(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	h.step(action.Lock, action.SeqCst, t1, locM1, 0)
	try := h.step(action.Trylock, action.SeqCst, t2, locM1, 0)

	if got := try.ReturnValue(); got != 0 {
		t.Errorf("trylock on held mutex returned %d, want 0", got)
	}
	if got := h.ex.MutexOwner(locM1); got != h.ex.Thread(t1) {
		t.Error("failed trylock changed mutex ownership")
	}
}

// TestCondvarNotifyOneWakesSelected tests that notify-one wakes exactly
// the waiter the oracle picks and leaves the rest waiting.
func TestCondvarNotifyOneWakesSelected(t *testing.T) {
	h := newHarness(t)
	t1, t2, t3 := h.spawn(), h.spawn(), h.spawn()

	h.oracle.waitAnswers = []bool{true, true}
	waitT2 := h.step(action.Wait, action.SeqCst, t2, locCV, uint64(locM1))
	waitT3 := h.step(action.Wait, action.SeqCst, t3, locCV, uint64(locM1))

	if !h.ex.Thread(t2).IsBlocked() || !h.ex.Thread(t3).IsBlocked() {
		t.Fatal("waiters are not blocked after wait")
	}

	h.oracle.notifyPicks = []int{1}
	h.step(action.NotifyOne, action.SeqCst, t1, locCV, 0)

	if h.ex.Thread(t3).IsBlocked() {
		t.Error("selected waiter t3 is still blocked after notify-one")
	}
	if !h.ex.Thread(t2).IsBlocked() {
		t.Error("unselected waiter t2 was woken by notify-one")
	}

	// Notify-one leaves the waiter list itself unchanged.
	waiters := h.ex.CondvarWaiters(locCV)
	if len(waiters) != 2 || waiters[0] != waitT2 || waiters[1] != waitT3 {
		t.Errorf("condvar waiter list = %v, want both waits untouched", waiters)
	}
}

// TestNotifyAllDrainsWaiters tests that notify-all wakes everyone and
// clears the list.
func TestNotifyAllDrainsWaiters(t *testing.T) {
	h := newHarness(t)
	t1, t2, t3 := h.spawn(), h.spawn(), h.spawn()

	h.oracle.waitAnswers = []bool{true, true}
	h.step(action.Wait, action.SeqCst, t2, locCV, uint64(locM1))
	h.step(action.Wait, action.SeqCst, t3, locCV, uint64(locM1))

	h.step(action.NotifyAll, action.SeqCst, t1, locCV, 0)

	if h.ex.Thread(t2).IsBlocked() || h.ex.Thread(t3).IsBlocked() {
		t.Error("waiters still blocked after notify-all")
	}
	if got := len(h.ex.CondvarWaiters(locCV)); got != 0 {
		t.Errorf("condvar waiter list holds %d entries after notify-all, want 0", got)
	}
}

// TestDeadlockDetection tests the classic lock-order inversion: both
// threads hold one mutex and block on the other.
func TestDeadlockDetection(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	h.step(action.Lock, action.SeqCst, t1, locM1, 0)
	h.step(action.Lock, action.SeqCst, t2, locM2, 0)

	// Complete the initial thread so only the user threads remain.
	h.step(action.ThreadFinish, action.Relaxed, h.ex.InitThread().ID(), 0, 0)

	block := func(tid int, loc uintptr) {
		act := action.New(action.Lock, action.SeqCst, tid, loc, 0)
		if h.ex.CheckActionEnabled(act) {
			t.Fatalf("lock of held mutex %#x reported enabled", loc)
		}
		thr := h.ex.Thread(tid)
		thr.SetPending(act)
		thr.SetWaitingOn(h.ex.MutexOwner(loc))
		h.sched.Sleep(thr)
	}
	block(t1, locM2)
	block(t2, locM1)

	if !h.ex.IsDeadlocked() {
		t.Error("IsDeadlocked() = false, want true for lock-order inversion")
	}
	if !h.ex.IsCompleteExecution() {
		t.Error("IsCompleteExecution() = false, want true: nothing is enabled")
	}
}

// TestUnlockWakesLockWaiter tests that releasing a mutex re-enables a
// blocked locker.
func TestUnlockWakesLockWaiter(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	h.step(action.Lock, action.SeqCst, t1, locM1, 0)

	blocked := action.New(action.Lock, action.SeqCst, t2, locM1, 0)
	thr := h.ex.Thread(t2)
	thr.SetPending(blocked)
	thr.SetWaitingOn(h.ex.MutexOwner(locM1))
	h.sched.Sleep(thr)

	h.step(action.Unlock, action.SeqCst, t1, locM1, 0)

	if thr.IsBlocked() {
		t.Error("blocked locker was not woken by unlock")
	}
	if !h.ex.IsEnabled(t2) {
		t.Error("woken locker is not enabled")
	}
}

// TestThreadJoinSynchronizes tests join synchronization with the joined
// thread's last action.
func TestThreadJoinSynchronizes(t *testing.T) {
	h := newHarness(t)
	t1 := h.spawn()

	w := h.step(action.AtomicWrite, action.Relaxed, t1, locX, 7)
	h.step(action.ThreadFinish, action.Relaxed, t1, 0, 0)

	join := action.New(action.ThreadJoin, action.Relaxed, h.ex.InitThread().ID(), 0, 0)
	join.SetThreadOperand(t1)
	if !h.ex.CheckActionEnabled(join) {
		t.Fatal("join of completed thread reported disabled")
	}
	stepped, _ := h.ex.TakeStep(join)

	if !w.HappensBefore(stepped) {
		t.Error("join did not synchronize with the joined thread's actions")
	}
}

// TestThreadFinishWakesJoiner tests that finishing wakes a blocked
// joiner.
func TestThreadFinishWakesJoiner(t *testing.T) {
	h := newHarness(t)
	t1 := h.spawn()

	join := action.New(action.ThreadJoin, action.Relaxed, h.ex.InitThread().ID(), 0, 0)
	join.SetThreadOperand(t1)
	if h.ex.CheckActionEnabled(join) {
		t.Fatal("join of running thread reported enabled")
	}
	init := h.ex.InitThread()
	init.SetPending(join)
	init.SetWaitingOn(h.ex.Thread(t1))
	h.sched.Sleep(init)

	h.step(action.ThreadFinish, action.Relaxed, t1, 0, 0)

	if init.IsBlocked() {
		t.Error("joiner still blocked after thread finish")
	}
}

// TestNonatomicStoreLazySplice tests lazy conversion of a plain store:
// it is spliced at its recorded rank and becomes a reads-from candidate.
func TestNonatomicStoreLazySplice(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	marker := h.step(action.AtomicWrite, action.Relaxed, t1, locY, 1)
	h.ex.RecordNonatomicStore(locX, t1, marker.Seq(), 7)

	h.step(action.AtomicWrite, action.Relaxed, t1, locY, 2)

	h.oracle.writeValues = []uint64{7}
	r := h.step(action.AtomicRead, action.Relaxed, t2, locX, 0)

	rf := r.ReadsFrom()
	if rf == nil || rf.Kind() != action.NonatomicWrite {
		t.Fatalf("read observes %v, want the converted nonatomic store", rf)
	}
	if got := rf.Seq(); got != marker.Seq() {
		t.Errorf("nonatomic store seq = %d, want recorded rank %d", got, marker.Seq())
	}
	h.checkTraceOrdered()
}

// TestFailedReadIsNotAdded tests the infeasible-read path: when the
// oracle reports no feasible write, the read stays out of the trace and
// its sequence number is reused.
func TestFailedReadIsNotAdded(t *testing.T) {
	h := newHarness(t)
	t1 := h.spawn()

	before := len(h.ex.ActionTrace())
	h.oracle.failNextRead = true
	r := h.step(action.AtomicRead, action.Relaxed, t1, locX, 0)

	if got := r.Seq(); got != 0 {
		t.Errorf("failed read seq = %d, want 0 (paused)", got)
	}
	if got := len(h.ex.ActionTrace()); got != before+1 {
		// Only the synthesized uninitialized store joined the trace.
		t.Errorf("trace grew by %d actions, want 1 (uninit only)", got-before)
	}

	// The create took seq 1; the failed read's seq 2 must be reused.
	w := h.step(action.AtomicWrite, action.Relaxed, t1, locX, 3)
	if got := w.Seq(); got != 2 {
		t.Errorf("next action seq = %d, want 2: failed read's number not given back", got)
	}
	h.checkTraceOrdered()
}

// TestSleepWakeViaOracle tests thread-sleep parking and the oracle-gated
// wake rule.
func TestSleepWakeViaOracle(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	h.step(action.ThreadSleep, action.Relaxed, t1, 0, 0)
	if !h.sched.IsSleepSet(h.ex.Thread(t1)) {
		t.Fatal("sleeping thread is not in the sleep set")
	}

	// The scripted oracle refuses to wake sleepers, so an unrelated
	// action leaves the sleeper parked.
	h.step(action.AtomicWrite, action.Relaxed, t2, locX, 1)
	if !h.sched.IsSleepSet(h.ex.Thread(t1)) {
		t.Error("sleeper left the sleep set without an oracle wake")
	}
}

// TestWakeOnSynchronizingStore tests the wake rule for an acquire load
// parked on a variable a release store just hit.
func TestWakeOnSynchronizingStore(t *testing.T) {
	h := newHarness(t)
	t1, t2 := h.spawn(), h.spawn()

	// Park t2 with a pending acquire load of x in the sleep set.
	thr := h.ex.Thread(t2)
	pendingRead := action.New(action.AtomicRead, action.Acquire, t2, locX, 0)
	thr.SetPending(pendingRead)
	h.sched.AddSleep(thr)

	h.step(action.AtomicWrite, action.Release, t1, locX, 1)

	if h.sched.IsSleepSet(thr) {
		t.Error("release store on the watched variable did not wake the parked acquire load")
	}
}

// TestSummaryDeterministic tests that identical executions print
// identical summaries, hash line included.
func TestSummaryDeterministic(t *testing.T) {
	run := func() string {
		var sb strings.Builder
		oracle := &scriptedOracle{writeValues: []uint64{0, 1}}
		sched := scheduler.New()
		ex := New(Params{}, sched, oracle, &sb)
		t1 := func() int {
			create := action.New(action.ThreadCreate, action.Relaxed, ex.InitThread().ID(), 0, 0)
			stepped, _ := ex.TakeStep(create)
			return stepped.ThreadOperand()
		}()
		ex.TakeStep(action.New(action.AtomicWrite, action.Release, t1, locX, 1))
		ex.TakeStep(action.New(action.AtomicRead, action.Acquire, t1, locX, 0))
		ex.PrintSummary()
		return sb.String()
	}
	if run() != run() {
		t.Error("identical executions produced different summaries")
	}
}

// TestPthreadCreateAssignsHandle tests the user-visible pthread handle
// mapping.
func TestPthreadCreateAssignsHandle(t *testing.T) {
	h := newHarness(t)

	create, next := h.ex.TakeStep(action.New(action.PthreadCreate, action.Relaxed, h.ex.InitThread().ID(), 0, 0))
	if next == nil || next.ID() != create.ThreadOperand() {
		t.Fatal("pthread create did not force the child to run next")
	}

	handle := uint32(create.Value())
	if handle == 0 {
		t.Fatal("pthread create assigned handle 0")
	}
	child := h.ex.Pthread(handle)
	if child == nil || child.ID() != create.ThreadOperand() {
		t.Errorf("Pthread(%d) = %v, want the created thread", handle, child)
	}
	if got := child.PthreadID(); got != handle {
		t.Errorf("child PthreadID() = %d, want %d", got, handle)
	}

	w := h.step(action.AtomicWrite, action.Relaxed, child.ID(), locX, 5)
	h.step(action.ThreadFinish, action.Relaxed, child.ID(), 0, 0)

	join := action.New(action.PthreadJoin, action.Relaxed, h.ex.InitThread().ID(), 0, 0)
	join.SetThreadOperand(child.ID())
	stepped, _ := h.ex.TakeStep(join)
	if !w.HappensBefore(stepped) {
		t.Error("pthread join did not synchronize with the joined thread")
	}
}

// TestAssertBug tests bug accounting and the asserted flag.
func TestAssertBug(t *testing.T) {
	h := newHarness(t)

	if h.ex.HaveBugReports() || h.ex.HasAsserted() {
		t.Fatal("fresh execution already has bugs or asserted")
	}

	h.ex.AssertBug("data race on x")

	if !h.ex.HaveBugReports() {
		t.Error("HaveBugReports() = false after AssertBug")
	}
	if !h.ex.HasAsserted() {
		t.Error("HasAsserted() = false after AssertBug")
	}
	bugs := h.ex.Bugs()
	if len(bugs) != 1 || bugs[0].Msg != "data race on x" {
		t.Errorf("Bugs() = %v, want the recorded message", bugs)
	}
}
