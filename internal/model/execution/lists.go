package execution

import (
	"github.com/wintered/c11tester/internal/model/action"
)

// thrdListsFor returns the per-thread action lists of a location, grown
// to cover every thread allocated so far, and keeps the map entry in sync
// with the grown slice.
func (ex *Execution) thrdListsFor(m map[uintptr][][]*action.Action, loc uintptr) [][]*action.Action {
	vec := m[loc]
	for len(vec) < ex.nextThreadID {
		vec = append(vec, nil)
	}
	m[loc] = vec
	return vec
}

func (ex *Execution) growLastAction() {
	for len(ex.thrdLastAction) < ex.nextThreadID {
		ex.thrdLastAction = append(ex.thrdLastAction, nil)
	}
}

func (ex *Execution) growLastFenceRelease() {
	for len(ex.thrdLastFenceRelease) < ex.nextThreadID {
		ex.thrdLastFenceRelease = append(ex.thrdLastFenceRelease, nil)
	}
}

// addUninitActionToLists synthesizes the uninitialized store for a
// location the first time an atomic operation touches it, splicing it to
// the front of the trace and of every per-location index so every later
// read has at least one candidate write. It also makes sure the
// per-thread index of the location covers the current thread.
func (ex *Execution) addUninitActionToLists(act *action.Action) {
	loc := act.Location()
	var uninit *action.Action

	if len(ex.objMap[loc]) == 0 && act.IsAtomicVar() {
		uninit = action.New(action.Uninitialized, action.Relaxed, ex.modelThread.ID(), loc, ex.params.UninitValue)
		uninit.CreateCV(nil)

		ex.objMap[loc] = append([]*action.Action{uninit}, ex.objMap[loc]...)

		wrvec := ex.thrdListsFor(ex.objWrThrdMap, loc)
		wrvec[uninit.TID()] = append([]*action.Action{uninit}, wrvec[uninit.TID()]...)

		ex.actionTrace = append([]*action.Action{uninit}, ex.actionTrace...)
	}

	vec := ex.thrdListsFor(ex.objThrdMap, loc)
	ex.growLastAction()
	if uninit != nil {
		vec[uninit.TID()] = append([]*action.Action{uninit}, vec[uninit.TID()]...)
		ex.thrdLastAction[uninit.TID()] = uninit
	}
}

// addActionToLists appends the action to the trace and every per-location
// and per-thread index, and refreshes the last-action and last-release-
// fence caches. A wait additionally indexes under its mutex, since the
// wait releases that mutex.
func (ex *Execution) addActionToLists(act *action.Action) {
	tid := act.TID()
	loc := act.Location()

	ex.objMap[loc] = append(ex.objMap[loc], act)
	ex.actionTrace = append(ex.actionTrace, act)

	vec := ex.thrdListsFor(ex.objThrdMap, loc)
	vec[tid] = append(vec[tid], act)

	ex.growLastAction()
	ex.thrdLastAction[tid] = act

	if act.IsFence() && act.IsRelease() {
		ex.growLastFenceRelease()
		ex.thrdLastFenceRelease[tid] = act
	}

	if act.IsWait() {
		mutexLoc := uintptr(act.Value())
		ex.objMap[mutexLoc] = append(ex.objMap[mutexLoc], act)
		mvec := ex.thrdListsFor(ex.objThrdMap, mutexLoc)
		mvec[tid] = append(mvec[tid], act)
	}
}

// addWriteToLists appends a write to the per-location write index. A
// fused rmw lands here too: it entered the other indices as a read and
// becomes visible to future readers only now.
func (ex *Execution) addWriteToLists(write *action.Action) {
	wrvec := ex.thrdListsFor(ex.objWrThrdMap, write.Location())
	wrvec[write.TID()] = append(wrvec[write.TID()], write)
}

// insertIntoActionList splices act into a list kept in sequence-number
// order. Everything but lazily converted nonatomic writes appends at the
// tail; the splice walks back only as far as the write's recorded rank.
func insertIntoActionList(list []*action.Action, act *action.Action) []*action.Action {
	n := len(list)
	if n == 0 || list[n-1].Seq() <= act.Seq() {
		return append(list, act)
	}
	i := n - 1
	for i >= 0 && list[i].Seq() > act.Seq() {
		i--
	}
	list = append(list, nil)
	copy(list[i+2:], list[i+1:])
	list[i+1] = act
	return list
}

// insertIntoActionListAndSetCV is insertIntoActionList for the action
// trace: the spliced write also receives the clock vector it would have
// had, parented at the action it lands after.
func insertIntoActionListAndSetCV(list []*action.Action, act *action.Action) []*action.Action {
	n := len(list)
	if n == 0 {
		act.CreateCV(nil)
		return append(list, act)
	}
	if list[n-1].Seq() <= act.Seq() {
		act.CreateCV(list[n-1])
		return append(list, act)
	}
	i := n - 1
	for i >= 0 && list[i].Seq() > act.Seq() {
		i--
	}
	if i >= 0 {
		act.CreateCV(list[i])
	} else {
		act.CreateCV(nil)
	}
	list = append(list, nil)
	copy(list[i+2:], list[i+1:])
	list[i+1] = act
	return list
}

// addNormalWriteToLists splices a lazily converted nonatomic write into
// the trace and the per-location indices at its recorded rank. This is
// the only retrospective insertion in the engine.
func (ex *Execution) addNormalWriteToLists(act *action.Action) {
	tid := act.TID()
	loc := act.Location()

	ex.actionTrace = insertIntoActionListAndSetCV(ex.actionTrace, act)
	ex.objMap[loc] = insertIntoActionList(ex.objMap[loc], act)

	vec := ex.thrdListsFor(ex.objThrdMap, loc)
	vec[tid] = insertIntoActionList(vec[tid], act)

	ex.growLastAction()
	if last := ex.thrdLastAction[tid]; last != nil && last.Seq() == act.Seq() {
		ex.thrdLastAction[tid] = act
	}
}

// convertNonAtomicStore turns the shadow record of a plain store into a
// real write action at its recorded rank, runs write modification order
// for it, and hands it back as a reads-from candidate.
func (ex *Execution) convertNonAtomicStore(loc uintptr) *action.Action {
	st := ex.nonatomicStores[loc]
	delete(ex.nonatomicStores, loc)

	act := action.New(action.NonatomicWrite, action.Relaxed, st.tid, loc, st.value)
	act.SetSeq(st.clock)
	ex.addNormalWriteToLists(act)
	ex.addWriteToLists(act)
	ex.writeModificationOrder(act)
	return act
}
