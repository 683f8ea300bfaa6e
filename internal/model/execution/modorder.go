package execution

import (
	"github.com/wintered/c11tester/internal/model/action"
)

// readModificationOrder determines whether curr may read from the
// candidate write rf, per the constraints of C++11 §29.3 plus the edges
// already in the mo-graph.
//
// For every thread, starting with curr's own, the per-object action list
// is walked backward looking for the latest action constraining the
// choice. A write must be mo-before rf; a read forces the write it read
// from mo-before rf. If any required predecessor is already reachable
// from rf in the mo-graph, the candidate is rejected and the graph left
// untouched.
//
// On acceptance it returns the priorset of writes the caller must order
// before rf, plus a canprune flag: when the preceding same-thread read
// already pinned the same write, curr carries no new mo information and
// may be dropped from the per-object index.
func (ex *Execution) readModificationOrder(curr, rf *action.Action) (ok bool, priorset []*action.Action, canprune bool) {
	thrdLists := ex.objThrdMap[curr.Location()]

	// Last seq-cst fence in the current thread.
	fenceLocal := ex.lastSCFence(curr.TID(), nil)

	var prevSameThread *action.Action
	n := len(thrdLists)
	for i := 0; i < n; i++ {
		tid := curr.TID() + i
		if tid >= n {
			tid -= n
		}

		// Last seq-cst fence in thread tid.
		var fenceThreadLocal *action.Action
		if i != 0 {
			fenceThreadLocal = ex.lastSCFence(tid, nil)
		}
		// Last seq-cst fence in thread tid before the current thread's.
		var fenceThreadBefore *action.Action
		if fenceLocal != nil {
			fenceThreadBefore = ex.lastSCFence(tid, fenceLocal)
		}

		// The thread needs scanning only if hb knowledge of it changed
		// since the previous same-thread action, or a seq-cst fence
		// intervened.
		if prevSameThread != nil &&
			prevSameThread.CV().Clock(tid) == curr.CV().Clock(tid) &&
			(fenceThreadLocal == nil || fenceThreadLocal.SeqLess(prevSameThread)) {
			continue
		}

		list := thrdLists[tid]
		for j := len(list) - 1; j >= 0; j-- {
			act := list[j]

			if act == curr {
				continue
			}
			// No reflexive edges on rf.
			if act == rf {
				if act.HappensBefore(curr) {
					break
				}
				continue
			}

			if act.IsWrite() {
				switch {
				// C++11 §29.3 statement 5.
				case curr.IsSeqCst() && fenceThreadLocal != nil && act.SeqLess(fenceThreadLocal):
					if ex.moGraph.CheckReachable(rf, act) {
						return false, nil, false
					}
					priorset = append(priorset, act)
					j = -1
				// C++11 §29.3 statement 4.
				case act.IsSeqCst() && fenceLocal != nil && act.SeqLess(fenceLocal):
					if ex.moGraph.CheckReachable(rf, act) {
						return false, nil, false
					}
					priorset = append(priorset, act)
					j = -1
				// C++11 §29.3 statement 6.
				case fenceThreadBefore != nil && act.SeqLess(fenceThreadBefore):
					if ex.moGraph.CheckReachable(rf, act) {
						return false, nil, false
					}
					priorset = append(priorset, act)
					j = -1
				}
				if j < 0 {
					break
				}
			}

			// Include at most one action per thread that happens before
			// curr.
			if act.HappensBefore(curr) {
				if i == 0 {
					if fenceLocal == nil || fenceLocal.SeqLess(act) {
						prevSameThread = act
					}
				}
				if act.IsWrite() {
					if ex.moGraph.CheckReachable(rf, act) {
						return false, nil, false
					}
					priorset = append(priorset, act)
				} else {
					prevRF := act.ReadsFrom()
					if prevRF != rf {
						if prevRF != nil {
							if ex.moGraph.CheckReachable(rf, prevRF) {
								return false, nil, false
							}
							priorset = append(priorset, prevRF)
						}
					} else if act.TID() == curr.TID() {
						canprune = true
					}
				}
				break
			}
		}
	}
	return true, priorset, canprune
}

// writeModificationOrder computes the mo-edges the new write curr imposes:
// the latest happens-before action of each thread either is a write that
// must precede curr or is a read whose source must precede curr. A
// seq-cst write additionally follows the previous seq-cst write to the
// location. A cycle here is a model bug and fatal.
func (ex *Execution) writeModificationOrder(curr *action.Action) {
	thrdLists := ex.thrdListsFor(ex.objThrdMap, curr.Location())
	var edgeset []*action.Action

	if curr.IsSeqCst() {
		// At minimum the previous seq-cst write is mo-before curr.
		if last := ex.lastSCWrite(curr); last != nil {
			edgeset = append(edgeset, last)
		}
		ex.objLastSCMap[curr.Location()] = curr
	}

	// Last seq-cst fence in the current thread.
	fenceLocal := ex.lastSCFence(curr.TID(), nil)

	for tid := range thrdLists {
		// Last seq-cst fence in thread tid before the current thread's.
		var fenceThreadBefore *action.Action
		if fenceLocal != nil && tid != curr.TID() {
			fenceThreadBefore = ex.lastSCFence(tid, fenceLocal)
		}

		list := thrdLists[tid]
		for j := len(list) - 1; j >= 0; j-- {
			act := list[j]
			if act == curr {
				// A fused rmw with a resolved reads-from already carries
				// every relevant edge; otherwise keep scanning for
				// whatever edge speeds up convergence.
				if curr.IsRMW() {
					if curr.ReadsFrom() != nil {
						break
					}
					continue
				}
				continue
			}

			// C++11 §29.3 statement 7.
			if fenceThreadBefore != nil && act.IsWrite() && act.SeqLess(fenceThreadBefore) {
				edgeset = append(edgeset, act)
				break
			}

			// Include at most one action per thread that happens before
			// curr. An rmw contributes only its own edge; the edge from
			// its source is added when the rmw fuses.
			if act.HappensBefore(curr) {
				if act.IsWrite() {
					edgeset = append(edgeset, act)
				} else if act.IsRead() && act.ReadsFrom() != nil {
					edgeset = append(edgeset, act.ReadsFrom())
				}
				break
			}
		}
	}

	if !ex.moGraph.AddEdges(edgeset, curr) {
		panic("execution: write modification order closed a cycle in the mo-graph")
	}
}

// buildMayReadFrom collects every write the read curr may observe: each
// thread's write list is walked backward until a write that happens
// before curr, which bounds the visible past. A seq-cst read skips every
// seq-cst write but the latest, and an rmw read skips writes another rmw
// already consumed, except that a compare-and-swap bound to fail may
// still observe them.
func (ex *Execution) buildMayReadFrom(curr *action.Action) []*action.Action {
	thrdLists := ex.thrdListsFor(ex.objWrThrdMap, curr.Location())

	var lastSCWrite *action.Action
	if curr.IsSeqCst() {
		lastSCWrite = ex.lastSCWrite(curr)
	}

	var rfSet []*action.Action
	for tid := range thrdLists {
		list := thrdLists[tid]
		for j := len(list) - 1; j >= 0; j-- {
			act := list[j]
			if act == curr {
				continue
			}

			allow := true

			// A seq-cst read sees at most one seq-cst write.
			if curr.IsSeqCst() &&
				(act.IsSeqCst() || (lastSCWrite != nil && act.HappensBefore(lastSCWrite))) &&
				act != lastSCWrite {
				allow = false
			}

			// Two rmws must not read from the same write; a failing
			// compare-and-swap is exempt since it writes nothing.
			if curr.IsRMWR() {
				if !curr.IsRMWRCAS() || valequals(curr.Value(), act.Value(), curr.Size()) {
					if ex.moGraph.RMWReader(act) != nil {
						allow = false
					}
				}
			}

			if allow {
				rfSet = append(rfSet, act)
			}

			if act.HappensBefore(curr) {
				break
			}
		}
	}
	return rfSet
}

// MoMayAllow checks the §29.3 part 9 coherence constraint an exploration
// strategy may use to pre-filter candidates: reader must not observe
// writer if some write that happens after reader is already mo-before
// writer.
func (ex *Execution) MoMayAllow(writer, reader *action.Action) bool {
	thrdLists := ex.objThrdMap[reader.Location()]
	for tid := range thrdLists {
		var writeAfterRead *action.Action

		list := thrdLists[tid]
		for j := len(list) - 1; j >= 0; j-- {
			act := list[j]
			if !reader.HappensBefore(act) || reader == act {
				break
			}
			if act.IsWrite() {
				writeAfterRead = act
			} else if act.IsRead() && act.ReadsFrom() != nil {
				writeAfterRead = act.ReadsFrom()
			}
		}

		if writeAfterRead != nil && writeAfterRead != writer &&
			ex.moGraph.CheckReachable(writeAfterRead, writer) {
			return false
		}
	}
	return true
}

// valequals compares two values at the width of the atomic access.
func valequals(val1, val2 uint64, size int) bool {
	switch size {
	case 1:
		return uint8(val1) == uint8(val2)
	case 2:
		return uint16(val1) == uint16(val2)
	case 4:
		return uint32(val1) == uint32(val2)
	case 8:
		return val1 == val2
	default:
		panic("execution: unsupported atomic access size")
	}
}
