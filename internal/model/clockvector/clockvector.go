// Package clockvector implements per-thread vector clocks for tracking
// happens-before relations between model actions.
//
// Every action in an execution carries a clock vector summarizing all the
// happens-before knowledge available at the point the action executed.
// Component i of a vector is the sequence number of the latest action of
// thread i known to happen before the owner.
//
// Unlike fixed-width vector clocks, these grow on demand: a vector created
// for thread t has at least t+1 components, and Merge extends the receiver
// when the other vector knows about more threads.
package clockvector

import "strconv"

// ClockVector is a growable vector of sequence numbers indexed by thread id.
//
// The zero-length vector is valid and means "knows nothing": every
// component reads as zero.
type ClockVector struct {
	clock []uint32
}

// New creates a clock vector for the action with the given thread id and
// sequence number, inheriting all components of parent. parent may be nil,
// in which case only the owner component is set.
//
// The resulting vector has max(tid+1, len(parent)) components and its tid
// component equals seq.
func New(parent *ClockVector, tid int, seq uint32) *ClockVector {
	n := tid + 1
	if parent != nil && len(parent.clock) > n {
		n = len(parent.clock)
	}
	cv := &ClockVector{clock: make([]uint32, n)}
	if parent != nil {
		copy(cv.clock, parent.clock)
	}
	cv.clock[tid] = seq
	return cv
}

// Clone returns an independent copy of cv. Clone(nil) returns an empty
// vector, which is convenient when accumulating release-sequence clocks.
func Clone(cv *ClockVector) *ClockVector {
	if cv == nil {
		return &ClockVector{}
	}
	c := &ClockVector{clock: make([]uint32, len(cv.clock))}
	copy(c.clock, cv.clock)
	return c
}

// Merge folds other into cv componentwise (pointwise maximum), extending cv
// if other has more components. It reports whether any component of cv grew.
//
// Merge(nil) is a no-op.
func (cv *ClockVector) Merge(other *ClockVector) bool {
	if other == nil {
		return false
	}
	if len(other.clock) > len(cv.clock) {
		grown := make([]uint32, len(other.clock))
		copy(grown, cv.clock)
		cv.clock = grown
	}
	changed := false
	for i, c := range other.clock {
		if c > cv.clock[i] {
			cv.clock[i] = c
			changed = true
		}
	}
	return changed
}

// SynchronizedSince reports whether cv's owner has synchronized with the
// action of thread tid carrying sequence number seq; that is, whether that
// action happens before the owner of cv.
func (cv *ClockVector) SynchronizedSince(tid int, seq uint32) bool {
	if tid >= len(cv.clock) {
		return false
	}
	return seq <= cv.clock[tid]
}

// Clock returns component tid. Threads the vector does not know about read
// as zero.
func (cv *ClockVector) Clock(tid int) uint32 {
	if tid < 0 || tid >= len(cv.clock) {
		return 0
	}
	return cv.clock[tid]
}

// NumThreads returns the number of components in the vector.
func (cv *ClockVector) NumThreads() int {
	return len(cv.clock)
}

// String renders the vector as "( c0 c1 ... )" for trace output.
func (cv *ClockVector) String() string {
	buf := make([]byte, 0, 2+4*len(cv.clock))
	buf = append(buf, '(')
	for _, c := range cv.clock {
		buf = append(buf, ' ')
		buf = strconv.AppendUint(buf, uint64(c), 10)
	}
	buf = append(buf, ' ', ')')
	return string(buf)
}
