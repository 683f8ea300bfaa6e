// Package model provides the public API for the c11tester execution core.
//
// See doc.go for detailed documentation and examples.
package model

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/execution"
	"github.com/wintered/c11tester/internal/model/fuzzer"
	"github.com/wintered/c11tester/internal/model/scheduler"
	"github.com/wintered/c11tester/internal/model/threads"
)

// MemOrder is a C++11 memory order.
type MemOrder int

const (
	Relaxed MemOrder = iota
	Acquire
	Release
	AcqRel
	SeqCst
)

func (o MemOrder) internal() action.Ordering {
	return action.Ordering(o)
}

// OpType identifies a modeled operation.
type OpType int

const (
	// Load reads Loc with the given order.
	Load OpType = iota
	// Store writes Value to Loc with the given order.
	Store
	// RMWAdd atomically adds Value to Loc.
	RMWAdd
	// CAS compares Loc against Expect and stores Value on success.
	CAS
	// FenceOp issues a fence with the given order.
	FenceOp
	// LockOp and UnlockOp operate on the mutex at Loc.
	LockOp
	UnlockOp
	// WaitOp waits on the condition variable at Loc, releasing the mutex
	// at Value; waking re-acquires the mutex.
	WaitOp
	// NotifyOneOp and NotifyAllOp wake waiters of the condition variable
	// at Loc.
	NotifyOneOp
	NotifyAllOp
	// SleepOp models a thread sleep; the oracle decides when it ends.
	SleepOp
)

// Op is one operation in a modeled thread's program.
type Op struct {
	Type   OpType
	Order  MemOrder
	Loc    uint64
	Value  uint64
	Expect uint64
}

// Program is a modeled program: one operation list per thread. All
// threads are created up front by an implicit initial thread, which
// joins them and finishes once they are done.
type Program struct {
	Threads [][]Op
}

// Options configures a single execution.
type Options struct {
	// Seed drives the default random oracle.
	Seed int64
	// Replay, when non-nil, substitutes a replay oracle echoing a
	// previously recorded decision log.
	Replay []int
	// Record captures the oracle's decisions into Result.Choices.
	Record bool
	// UninitValue is observed by reads that precede every write to
	// their location.
	UninitValue uint64
	// Number tags the execution in its trace summary.
	Number int
	// DumpGraph, when non-nil, receives the modification-order graph
	// plus sb and rf edges as a Graphviz digraph after the run.
	DumpGraph io.Writer
}

// Result reports one execution.
type Result struct {
	// Reads holds, per program thread, the values observed by its Load,
	// RMWAdd and CAS operations in program order.
	Reads [][]uint64
	// Complete reports that no thread was left enabled at the end of the
	// run; a deadlocked run counts as complete too.
	Complete bool
	// Deadlocked reports that no thread was runnable while some thread
	// still had a pending action.
	Deadlocked bool
	// Redundant reports that only sleep-set threads remained.
	Redundant bool
	// MoAcyclic reports that the modification-order graph never refused
	// an edge; it must hold for every execution.
	MoAcyclic bool
	// Bugs are the messages recorded against the execution.
	Bugs []string
	// Summary is the printed trace table, terminated by its hash line.
	Summary string
	// Choices is the recorded oracle decision log when Options.Record
	// was set; replaying it reproduces this execution.
	Choices []int
}

// Run performs one execution of the program and reports what it
// observed.
func Run(p Program, opts Options) *Result {
	r := newRunner(p, opts)
	r.run()
	return r.finish()
}

// runner drives the execution engine with the scripted program, playing
// the role of the instrumented program and its scheduler loop.
type runner struct {
	opts    Options
	sched   *scheduler.Scheduler
	oracle  fuzzer.Oracle
	rec     *fuzzer.Recorder
	ex      *execution.Execution
	out     bytes.Buffer
	scripts map[int]*threadScript
	reads   [][]uint64
}

// threadScript is the per-thread cursor over the modeled program.
type threadScript struct {
	// program is the index of the program thread, or -1 for the initial
	// thread.
	program int
	ops     []Op
	pos     int

	started  bool
	finished bool

	// rmwPending is the operation whose commit half is still owed, set
	// between the read and commit steps of a read-modify-write.
	rmwPending *Op
	rmwRead    uint64

	// Initial-thread bookkeeping.
	created int
	joined  int
}

func newRunner(p Program, opts Options) *runner {
	r := &runner{
		opts:    opts,
		sched:   scheduler.New(),
		scripts: make(map[int]*threadScript),
		reads:   make([][]uint64, len(p.Threads)),
	}
	if opts.Replay != nil {
		r.oracle = fuzzer.NewReplay(opts.Replay)
	} else {
		r.oracle = fuzzer.NewRandom(opts.Seed)
	}
	if opts.Record {
		r.rec = fuzzer.NewRecorder(r.oracle)
		r.oracle = r.rec
	}
	r.ex = execution.New(execution.Params{UninitValue: opts.UninitValue}, r.sched, r.oracle, &r.out)
	r.ex.SetExecutionNumber(opts.Number)

	init := r.ex.InitThread()
	r.scripts[init.ID()] = &threadScript{program: -1}
	for i, ops := range p.Threads {
		// Threads are created in program order, so ids are sequential
		// from the first child.
		tid := init.ID() + 1 + i
		r.scripts[tid] = &threadScript{program: i, ops: expandOps(ops)}
	}
	return r
}

// expandOps rewrites operations that span several actions: waking from a
// wait re-acquires the mutex, so a WaitOp is followed by a LockOp.
func expandOps(ops []Op) []Op {
	out := make([]Op, 0, len(ops))
	for _, op := range ops {
		out = append(out, op)
		if op.Type == WaitOp {
			out = append(out, Op{Type: LockOp, Order: op.Order, Loc: op.Value})
		}
	}
	return out
}

// nextAction builds the next action of a thread, or nil once its script
// is exhausted and the thread finished.
func (r *runner) nextAction(tid int) (*action.Action, *Op) {
	s := r.scripts[tid]
	if s == nil || s.finished {
		return nil, nil
	}

	if op := s.rmwPending; op != nil {
		s.rmwPending = nil
		return r.commitAction(tid, op, s.rmwRead), nil
	}

	if !s.started {
		s.started = true
		return action.New(action.ThreadStart, action.Relaxed, tid, 0, 0), nil
	}

	if s.program == -1 {
		numThreads := len(r.reads)
		if s.created < numThreads {
			s.created++
			return action.New(action.ThreadCreate, action.Relaxed, tid, 0, 0), nil
		}
		if s.joined < numThreads {
			joinTID := r.ex.InitThread().ID() + 1 + s.joined
			s.joined++
			act := action.New(action.ThreadJoin, action.Relaxed, tid, 0, 0)
			act.SetThreadOperand(joinTID)
			return act, nil
		}
		s.finished = true
		return action.New(action.ThreadFinish, action.Relaxed, tid, 0, 0), nil
	}

	if s.pos < len(s.ops) {
		op := &s.ops[s.pos]
		s.pos++
		return r.opAction(tid, op), op
	}

	s.finished = true
	return action.New(action.ThreadFinish, action.Relaxed, tid, 0, 0), nil
}

// opAction translates one program operation into the action that starts
// it; a read-modify-write leaves its commit pending.
func (r *runner) opAction(tid int, op *Op) *action.Action {
	s := r.scripts[tid]
	loc := uintptr(op.Loc)
	switch op.Type {
	case Load:
		return action.New(action.AtomicRead, op.Order.internal(), tid, loc, 0)
	case Store:
		return action.New(action.AtomicWrite, op.Order.internal(), tid, loc, op.Value)
	case RMWAdd:
		s.rmwPending = op
		return action.New(action.AtomicRMWR, op.Order.internal(), tid, loc, 0)
	case CAS:
		s.rmwPending = op
		return action.New(action.AtomicRMWRCAS, op.Order.internal(), tid, loc, op.Expect)
	case FenceOp:
		return action.New(action.Fence, op.Order.internal(), tid, 0, 0)
	case LockOp:
		return action.New(action.Lock, op.Order.internal(), tid, loc, 0)
	case UnlockOp:
		return action.New(action.Unlock, op.Order.internal(), tid, loc, 0)
	case WaitOp:
		return action.New(action.Wait, op.Order.internal(), tid, loc, op.Value)
	case NotifyOneOp:
		return action.New(action.NotifyOne, op.Order.internal(), tid, loc, 0)
	case NotifyAllOp:
		return action.New(action.NotifyAll, op.Order.internal(), tid, loc, 0)
	case SleepOp:
		return action.New(action.ThreadSleep, action.Relaxed, tid, 0, op.Value)
	default:
		panic("model: unknown operation type")
	}
}

// commitAction builds the commit half of a pending read-modify-write
// from the value the read half observed.
func (r *runner) commitAction(tid int, op *Op, read uint64) *action.Action {
	loc := uintptr(op.Loc)
	switch op.Type {
	case RMWAdd:
		return action.New(action.AtomicRMW, op.Order.internal(), tid, loc, read+op.Value)
	case CAS:
		if read == op.Expect {
			return action.New(action.AtomicRMW, op.Order.internal(), tid, loc, op.Value)
		}
		return action.New(action.AtomicRMWC, op.Order.internal(), tid, loc, 0)
	default:
		panic("model: commit without a pending rmw")
	}
}

func (r *runner) run() {
	var forced *threads.Thread
	for {
		if r.ex.HasAsserted() {
			return
		}

		var thr *threads.Thread
		if forced != nil && !forced.IsComplete() {
			thr = forced
			forced = nil
		} else {
			forced = nil
			thr = r.sched.Next(r.oracle)
		}
		if thr == nil {
			return
		}

		var act *action.Action
		var op *Op
		if pending := thr.Pending(); pending != nil {
			switch {
			case pending.IsSleep():
				// The sleep already executed; scheduling the thread
				// again ends it.
				r.sched.RemoveSleep(thr)
				thr.SetPending(nil)
			case pending.IsWait():
				// The wait already executed; the wake-up resumes after
				// it.
				thr.SetPending(nil)
			default:
				act = pending
				thr.SetPending(nil)
			}
		}
		if act == nil {
			act, op = r.nextAction(thr.ID())
		}
		if act == nil {
			continue
		}

		if !r.ex.CheckActionEnabled(act) {
			thr.SetPending(act)
			switch {
			case act.IsLock():
				thr.SetWaitingOn(r.ex.MutexOwner(act.Location()))
			case act.IsThreadJoin():
				thr.SetWaitingOn(r.ex.Thread(act.ThreadOperand()))
			}
			r.sched.Sleep(thr)
			continue
		}

		stepped, next := r.ex.TakeStep(act)
		r.afterStep(thr, stepped, op)
		forced = next
	}
}

// afterStep records read results and marks blocked threads' pending
// actions so deadlock detection sees them.
func (r *runner) afterStep(thr *threads.Thread, stepped *action.Action, op *Op) {
	s := r.scripts[thr.ID()]
	if s != nil && op != nil {
		switch op.Type {
		case Load:
			if s.program >= 0 {
				r.reads[s.program] = append(r.reads[s.program], thr.ReturnValue())
			}
		case RMWAdd, CAS:
			s.rmwRead = thr.ReturnValue()
			if s.program >= 0 {
				r.reads[s.program] = append(r.reads[s.program], thr.ReturnValue())
			}
		}
	}
	if thr.IsBlocked() && thr.Pending() == nil {
		thr.SetPending(stepped)
	}
}

func (r *runner) finish() *Result {
	r.ex.PrintSummary()
	if r.opts.DumpGraph != nil {
		r.ex.DumpGraph(r.opts.DumpGraph, fmt.Sprintf("exec%04d", r.opts.Number))
	}

	res := &Result{
		Reads:      r.reads,
		Complete:   r.ex.IsCompleteExecution(),
		Deadlocked: r.ex.IsDeadlocked(),
		Redundant:  r.sched.AllThreadsSleeping(),
		MoAcyclic:  !r.ex.MoGraphHasCycles(),
		Summary:    r.out.String(),
	}
	for _, bug := range r.ex.Bugs() {
		res.Bugs = append(res.Bugs, bug.Msg)
	}
	if r.rec != nil {
		res.Choices = r.rec.Choices()
	}
	return res
}
