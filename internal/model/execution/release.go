package execution

import (
	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/clockvector"
)

// hbFromWrite computes the clock vector an acquire reader of rf inherits,
// honoring C++11 release sequences.
//
// The reads-from chain is first walked backward through consecutive rmw
// writes until a node that already cached its release clock, an acq-rel
// rmw, or a non-rmw write. That node supplies the starting vector: its
// cache, its own clock for a release, or the clock of its thread's last
// release fence otherwise. Unwinding the collected rmws back toward rf,
// each release rmw folds its own clock into the vector and every visited
// node caches the vector it delivers, so later readers of the same chain
// reuse it.
//
// Returns nil when the chain carries no release at all.
func (ex *Execution) hbFromWrite(rf *action.Action) *clockvector.ClockVector {
	var processset []*action.Action
	for ; rf != nil; rf = rf.ReadsFrom() {
		if !rf.IsWrite() {
			panic("execution: release sequence reached a non-write")
		}
		if !rf.IsRMW() || (rf.IsAcquire() && rf.IsRelease()) || rf.RFCV() != nil {
			break
		}
		processset = append(processset, rf)
	}
	if rf == nil {
		panic("execution: release sequence walked past an unresolved rmw")
	}

	var vec *clockvector.ClockVector
	i := len(processset)
	for {
		switch {
		case rf.RFCV() != nil:
			vec = rf.RFCV()
		case rf.IsAcquire() && rf.IsRelease():
			vec = rf.CV()
		case rf.IsRelease() && !rf.IsRMW():
			vec = rf.CV()
		case rf.IsRelease():
			// A release rmw extends the vector inherited from its
			// source with its own clock. The source always supplied a
			// vector; anything else means the chain walk above is
			// broken.
			if vec == nil {
				panic("execution: release rmw inherited no clock")
			}
			merged := clockvector.Clone(vec)
			merged.Merge(rf.CV())
			vec = merged
			rf.SetRFCV(vec)
		default:
			// Not a release: the thread's last release fence, if any,
			// stands in for it.
			if fence := rf.LastFenceRelease(); fence != nil {
				if vec == nil {
					vec = fence.CV()
				} else {
					merged := clockvector.Clone(vec)
					merged.Merge(fence.CV())
					vec = merged
				}
			}
			rf.SetRFCV(vec)
		}

		i--
		if i >= 0 {
			rf = processset[i]
		} else {
			break
		}
	}
	return vec
}
