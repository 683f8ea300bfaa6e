package cyclegraph

import (
	"strings"
	"testing"

	"github.com/wintered/c11tester/internal/model/action"
)

func write(tid int, seq uint32) *action.Action {
	w := action.New(action.AtomicWrite, action.Relaxed, tid, 0x10, uint64(seq))
	w.SetSeq(seq)
	return w
}

// TestAddEdgeReachability tests that edges imply reachability,
// transitively.
func TestAddEdgeReachability(t *testing.T) {
	g := New()
	a, b, c := write(0, 1), write(1, 2), write(2, 3)

	if !g.AddEdge(a, b) {
		t.Fatal("AddEdge(a, b) = false, want true")
	}
	if !g.AddEdge(b, c) {
		t.Fatal("AddEdge(b, c) = false, want true")
	}

	if !g.CheckReachable(a, b) {
		t.Error("CheckReachable(a, b) = false, want true")
	}
	if !g.CheckReachable(a, c) {
		t.Error("CheckReachable(a, c) = false, want true (transitive)")
	}
	if g.CheckReachable(c, a) {
		t.Error("CheckReachable(c, a) = true, want false")
	}
	if g.HasCycles() {
		t.Error("HasCycles() = true, want false")
	}
}

// TestAddEdgeRefusesCycle tests that a cycle-closing edge is refused and
// leaves the graph acyclic.
func TestAddEdgeRefusesCycle(t *testing.T) {
	g := New()
	a, b, c := write(0, 1), write(1, 2), write(2, 3)
	g.AddEdge(a, b)
	g.AddEdge(b, c)

	if g.AddEdge(c, a) {
		t.Error("AddEdge(c, a) = true, want false: closes a cycle")
	}
	if !g.HasCycles() {
		t.Error("HasCycles() = false, want true after refused edge")
	}
	if g.CheckReachable(c, a) {
		t.Error("refused edge was inserted: CheckReachable(c, a) = true")
	}
}

// TestAddEdgeSelfLoop tests that a self-edge is refused.
func TestAddEdgeSelfLoop(t *testing.T) {
	g := New()
	a := write(0, 1)
	if g.AddEdge(a, a) {
		t.Error("AddEdge(a, a) = true, want false")
	}
}

// TestAddEdges tests the bulk insertion used by write modification
// order.
func TestAddEdges(t *testing.T) {
	g := New()
	a, b, c := write(0, 1), write(1, 2), write(2, 3)

	if !g.AddEdges([]*action.Action{a, b}, c) {
		t.Fatal("AddEdges() = false, want true")
	}
	if !g.CheckReachable(a, c) || !g.CheckReachable(b, c) {
		t.Error("AddEdges() did not insert all edges")
	}
}

// TestAddEdgeDuplicate tests that re-adding an edge keeps the graph
// consistent.
func TestAddEdgeDuplicate(t *testing.T) {
	g := New()
	a, b := write(0, 1), write(1, 2)
	g.AddEdge(a, b)
	if !g.AddEdge(a, b) {
		t.Error("duplicate AddEdge() = false, want true")
	}
}

// TestAddRMWEdgeRewiresSuccessors tests rmw atomicity: existing
// successors of the consumed write are reordered after the rmw.
func TestAddRMWEdgeRewiresSuccessors(t *testing.T) {
	g := New()
	w := write(0, 1)
	later := write(1, 2)
	rmw := write(2, 3)

	g.AddEdge(w, later)
	g.AddRMWEdge(w, rmw)

	if !g.CheckReachable(w, rmw) {
		t.Error("CheckReachable(w, rmw) = false, want true")
	}
	if !g.CheckReachable(rmw, later) {
		t.Error("CheckReachable(rmw, later) = false, want true: successor not rewired")
	}
	if got := g.RMWReader(w); got != rmw {
		t.Errorf("RMWReader(w) = %v, want the rmw", got)
	}
}

// TestRMWReaderUnknownWrite tests the nil result for untouched writes.
func TestRMWReaderUnknownWrite(t *testing.T) {
	g := New()
	if got := g.RMWReader(write(0, 1)); got != nil {
		t.Errorf("RMWReader(unknown) = %v, want nil", got)
	}
}

// TestAddRMWEdgeSecondReaderPanics tests that a second rmw consuming the
// same write is fatal.
func TestAddRMWEdgeSecondReaderPanics(t *testing.T) {
	g := New()
	w := write(0, 1)
	g.AddRMWEdge(w, write(1, 2))

	defer func() {
		if recover() == nil {
			t.Error("second AddRMWEdge() did not panic")
		}
	}()
	g.AddRMWEdge(w, write(2, 3))
}

// TestCheckReachableUnknown tests that unseen writes reach nothing.
func TestCheckReachableUnknown(t *testing.T) {
	g := New()
	a, b := write(0, 1), write(1, 2)
	if g.CheckReachable(a, b) {
		t.Error("CheckReachable over empty graph = true, want false")
	}
}

// TestDumpNodes tests the Graphviz fragment shape.
func TestDumpNodes(t *testing.T) {
	g := New()
	a, b := write(0, 1), write(1, 2)
	g.AddEdge(a, b)

	var sb strings.Builder
	g.DumpNodes(&sb)
	out := sb.String()

	if !strings.Contains(out, "N1 -> N2") {
		t.Errorf("DumpNodes() output missing edge: %q", out)
	}
}
