package fuzzer

import (
	"github.com/wintered/c11tester/internal/model/action"
	"github.com/wintered/c11tester/internal/model/threads"
)

// Recorder wraps another oracle and logs every choice it makes. Feeding
// the log to a Replay oracle reproduces the recorded execution exactly.
type Recorder struct {
	inner   Oracle
	choices []int
}

// NewRecorder wraps inner so its decisions are captured.
func NewRecorder(inner Oracle) *Recorder {
	return &Recorder{inner: inner}
}

// Choices returns the decision log so far.
func (r *Recorder) Choices() []int { return r.choices }

func (r *Recorder) record(c int) int {
	r.choices = append(r.choices, c)
	return c
}

func (r *Recorder) recordBool(b bool) bool {
	if b {
		r.record(1)
	} else {
		r.record(0)
	}
	return b
}

func (r *Recorder) SelectWrite(read *action.Action, rfSet []*action.Action) int {
	return r.record(r.inner.SelectWrite(read, rfSet))
}

func (r *Recorder) SelectThread(candidates []*threads.Thread) *threads.Thread {
	t := r.inner.SelectThread(candidates)
	if t == nil {
		r.record(-1)
	} else {
		r.record(t.ID())
	}
	return t
}

func (r *Recorder) SelectNotify(waiters []*action.Action) int {
	return r.record(r.inner.SelectNotify(waiters))
}

func (r *Recorder) ShouldSleep(sleep *action.Action) bool {
	return r.recordBool(r.inner.ShouldSleep(sleep))
}

func (r *Recorder) ShouldWake(sleep *action.Action) bool {
	return r.recordBool(r.inner.ShouldWake(sleep))
}

func (r *Recorder) ShouldWait(wait *action.Action) bool {
	return r.recordBool(r.inner.ShouldWait(wait))
}

func (r *Recorder) HasPausedThreads() bool { return r.inner.HasPausedThreads() }
func (r *Recorder) NotifyPausedThread(t *threads.Thread) { r.inner.NotifyPausedThread(t) }

func (r *Recorder) RegisterEngine(history History, engine Engine) {
	r.inner.RegisterEngine(history, engine)
}

// Replay echoes a previously recorded decision log. Running the same
// program under a Replay oracle yields a byte-identical trace summary.
//
// A replay that runs out of choices, or is asked a question of a shape
// that does not match the recording, answers conservatively (-1, nil or false)
// rather than panicking, so a diverging host fails visibly in its own
// assertions.
type Replay struct {
	choices []int
	next    int
}

// NewReplay creates an oracle that plays back choices in order.
func NewReplay(choices []int) *Replay {
	return &Replay{choices: choices}
}

func (r *Replay) take() (int, bool) {
	if r.next >= len(r.choices) {
		return -1, false
	}
	c := r.choices[r.next]
	r.next++
	return c, true
}

func (r *Replay) SelectWrite(_ *action.Action, rfSet []*action.Action) int {
	c, ok := r.take()
	if !ok || c >= len(rfSet) {
		return -1
	}
	return c
}

func (r *Replay) SelectThread(candidates []*threads.Thread) *threads.Thread {
	c, ok := r.take()
	if !ok {
		return nil
	}
	for _, t := range candidates {
		if t.ID() == c {
			return t
		}
	}
	return nil
}

func (r *Replay) SelectNotify(waiters []*action.Action) int {
	c, ok := r.take()
	if !ok || c >= len(waiters) {
		return -1
	}
	return c
}

func (r *Replay) ShouldSleep(*action.Action) bool {
	c, _ := r.take()
	return c == 1
}

func (r *Replay) ShouldWake(*action.Action) bool {
	c, _ := r.take()
	return c == 1
}

func (r *Replay) ShouldWait(*action.Action) bool {
	c, _ := r.take()
	return c == 1
}

func (r *Replay) HasPausedThreads() bool { return false }
func (r *Replay) NotifyPausedThread(*threads.Thread) {}
func (r *Replay) RegisterEngine(History, Engine) {}
