package main

import (
	"fmt"

	"github.com/wintered/c11tester/model"
)

const (
	varX    = 0x1000
	varY    = 0x1008
	varData = 0x1010
	varFlag = 0x1018
	mutexA  = 0x2000
	mutexB  = 0x2008
	condV   = 0x3000
)

// litmus is one built-in program plus a formatter summarizing an
// execution's observable outcome for the tally.
type litmus struct {
	name    string
	desc    string
	program func() model.Program
	outcome func(*model.Result) string
}

var litmusList = []litmus{
	{
		name: "sb",
		desc: "store buffering: both release writers may read the other variable stale",
		program: func() model.Program {
			return model.Program{Threads: [][]model.Op{
				{
					{Type: model.Store, Order: model.Release, Loc: varX, Value: 1},
					{Type: model.Load, Order: model.Acquire, Loc: varY},
				},
				{
					{Type: model.Store, Order: model.Release, Loc: varY, Value: 1},
					{Type: model.Load, Order: model.Acquire, Loc: varX},
				},
			}}
		},
		outcome: func(res *model.Result) string {
			return fmt.Sprintf("r1=%d r2=%d", res.Reads[0][0], res.Reads[1][0])
		},
	},
	{
		name: "mp",
		desc: "message passing: data behind a release flag",
		program: func() model.Program {
			return model.Program{Threads: [][]model.Op{
				{
					{Type: model.Store, Order: model.Relaxed, Loc: varData, Value: 42},
					{Type: model.Store, Order: model.Release, Loc: varFlag, Value: 1},
				},
				{
					{Type: model.Load, Order: model.Acquire, Loc: varFlag},
					{Type: model.Load, Order: model.Relaxed, Loc: varData},
				},
			}}
		},
		outcome: func(res *model.Result) string {
			return fmt.Sprintf("flag=%d data=%d", res.Reads[1][0], res.Reads[1][1])
		},
	},
	{
		name: "rmw-chain",
		desc: "release sequence through a relaxed rmw",
		program: func() model.Program {
			return model.Program{Threads: [][]model.Op{
				{
					{Type: model.Store, Order: model.Relaxed, Loc: varData, Value: 42},
					{Type: model.Store, Order: model.Release, Loc: varX, Value: 1},
				},
				{
					{Type: model.RMWAdd, Order: model.Relaxed, Loc: varX, Value: 1},
				},
				{
					{Type: model.Load, Order: model.Acquire, Loc: varX},
					{Type: model.Load, Order: model.Relaxed, Loc: varData},
				},
			}}
		},
		outcome: func(res *model.Result) string {
			return fmt.Sprintf("x=%d data=%d", res.Reads[2][0], res.Reads[2][1])
		},
	},
	{
		name: "sc",
		desc: "seq-cst total order: readers must agree",
		program: func() model.Program {
			return model.Program{Threads: [][]model.Op{
				{{Type: model.Store, Order: model.SeqCst, Loc: varX, Value: 1}},
				{{Type: model.Store, Order: model.SeqCst, Loc: varX, Value: 2}},
				{
					{Type: model.Load, Order: model.SeqCst, Loc: varX},
					{Type: model.Load, Order: model.SeqCst, Loc: varX},
				},
				{
					{Type: model.Load, Order: model.SeqCst, Loc: varX},
					{Type: model.Load, Order: model.SeqCst, Loc: varX},
				},
			}}
		},
		outcome: func(res *model.Result) string {
			return fmt.Sprintf("t3=%v t4=%v", res.Reads[2], res.Reads[3])
		},
	},
	{
		name: "cas",
		desc: "competing compare-and-swap: exactly one may win",
		program: func() model.Program {
			return model.Program{Threads: [][]model.Op{
				{{Type: model.CAS, Order: model.SeqCst, Loc: varX, Expect: 0, Value: 1}},
				{{Type: model.CAS, Order: model.SeqCst, Loc: varX, Expect: 0, Value: 2}},
				{{Type: model.Load, Order: model.SeqCst, Loc: varX}},
			}}
		},
		outcome: func(res *model.Result) string {
			return fmt.Sprintf("cas1-read=%d cas2-read=%d final=%d",
				res.Reads[0][0], res.Reads[1][0], res.Reads[2][0])
		},
	},
	{
		name: "deadlock",
		desc: "lock-order inversion: may deadlock",
		program: func() model.Program {
			return model.Program{Threads: [][]model.Op{
				{
					{Type: model.LockOp, Order: model.SeqCst, Loc: mutexA},
					{Type: model.LockOp, Order: model.SeqCst, Loc: mutexB},
					{Type: model.UnlockOp, Order: model.SeqCst, Loc: mutexB},
					{Type: model.UnlockOp, Order: model.SeqCst, Loc: mutexA},
				},
				{
					{Type: model.LockOp, Order: model.SeqCst, Loc: mutexB},
					{Type: model.LockOp, Order: model.SeqCst, Loc: mutexA},
					{Type: model.UnlockOp, Order: model.SeqCst, Loc: mutexA},
					{Type: model.UnlockOp, Order: model.SeqCst, Loc: mutexB},
				},
			}}
		},
		outcome: func(res *model.Result) string {
			if res.Deadlocked {
				return "deadlock"
			}
			return "completed"
		},
	},
	{
		name: "condvar",
		desc: "wait/notify hand-off on a condition variable",
		program: func() model.Program {
			return model.Program{Threads: [][]model.Op{
				{
					{Type: model.LockOp, Order: model.SeqCst, Loc: mutexA},
					{Type: model.WaitOp, Order: model.SeqCst, Loc: condV, Value: mutexA},
					{Type: model.UnlockOp, Order: model.SeqCst, Loc: mutexA},
				},
				{
					{Type: model.NotifyAllOp, Order: model.SeqCst, Loc: condV},
				},
			}}
		},
		outcome: func(res *model.Result) string {
			if res.Deadlocked {
				return "missed-notify"
			}
			return "completed"
		},
	},
}

func findLitmus(name string) *litmus {
	for i := range litmusList {
		if litmusList[i].name == name {
			return &litmusList[i]
		}
	}
	return nil
}
