// Package cyclegraph maintains the modification-order graph: a directed
// acyclic graph whose nodes are the writes of an execution and whose edges
// are the mo and rf-induced precedences discovered so far.
//
// The graph must stay acyclic at all times. AddEdge refuses an edge that
// would close a cycle and reports the refusal, which the read algorithm
// treats as infeasibility of the candidate reads-from choice. The write
// algorithm treats a refusal as a model bug.
package cyclegraph

import (
	"fmt"
	"io"

	"github.com/xojoc/bitset"

	"github.com/wintered/c11tester/internal/model/action"
)

type node struct {
	id  int
	act *action.Action

	edges []*node
	// rmw is the read-modify-write consuming this write, if any. At most
	// one rmw may read from any given write.
	rmw *node
}

func (n *node) addEdge(to *node) bool {
	for _, e := range n.edges {
		if e == to {
			return false
		}
	}
	n.edges = append(n.edges, to)
	return true
}

// Graph is the modification-order graph over writes. Nodes are created
// lazily, one per write action.
type Graph struct {
	nodes     map[*action.Action]*node
	nodeList  []*node
	hasCycles bool
}

// New creates an empty modification-order graph.
func New() *Graph {
	return &Graph{nodes: make(map[*action.Action]*node)}
}

func (g *Graph) getNode(act *action.Action) *node {
	n, ok := g.nodes[act]
	if !ok {
		n = &node{id: len(g.nodeList), act: act}
		g.nodes[act] = n
		g.nodeList = append(g.nodeList, n)
	}
	return n
}

func (g *Graph) lookup(act *action.Action) *node {
	return g.nodes[act]
}

// AddEdge records that write from precedes write to in modification order.
// If the edge would close a cycle it is not inserted; the graph records
// the inconsistency and AddEdge returns false.
func (g *Graph) AddEdge(from, to *action.Action) bool {
	if from == to {
		g.hasCycles = true
		return false
	}
	fromnode := g.getNode(from)
	tonode := g.getNode(to)
	if g.reachable(tonode, fromnode) {
		g.hasCycles = true
		return false
	}
	fromnode.addEdge(tonode)
	return true
}

// AddEdges records an edge from every write in set into to. Returns false
// if any edge was refused.
func (g *Graph) AddEdges(set []*action.Action, to *action.Action) bool {
	ok := true
	for _, from := range set {
		if !g.AddEdge(from, to) {
			ok = false
		}
	}
	return ok
}

// AddRMWEdge enforces read-modify-write atomicity: rmw reads from rf, so
// rmw must immediately follow rf in modification order. Every write that
// was previously ordered after rf is reordered after rmw, and rf records
// rmw as its unique consumer. A second rmw reading from the same write is
// a malformed fusion and panics.
func (g *Graph) AddRMWEdge(rf, rmw *action.Action) {
	fromnode := g.getNode(rf)
	rmwnode := g.getNode(rmw)
	if fromnode.rmw != nil && fromnode.rmw != rmwnode {
		panic(fmt.Sprintf("cyclegraph: two rmw actions read from write #%d", rf.Seq()))
	}
	fromnode.rmw = rmwnode

	for _, to := range fromnode.edges {
		if to != rmwnode {
			rmwnode.addEdge(to)
		}
	}
	if g.reachable(rmwnode, fromnode) {
		g.hasCycles = true
		return
	}
	fromnode.addEdge(rmwnode)
}

// RMWReader returns the rmw action already reading from the given write,
// if any. Used to keep a second rmw from fusing with the same write.
func (g *Graph) RMWReader(write *action.Action) *action.Action {
	n := g.lookup(write)
	if n == nil || n.rmw == nil {
		return nil
	}
	return n.rmw.act
}

// CheckReachable reports whether modification order currently forces from
// before to, i.e. whether to is reachable from from. Writes the graph has
// not seen reach nothing.
func (g *Graph) CheckReachable(from, to *action.Action) bool {
	fromnode := g.lookup(from)
	tonode := g.lookup(to)
	if fromnode == nil || tonode == nil {
		return false
	}
	return g.reachable(fromnode, tonode)
}

func (g *Graph) reachable(from, to *node) bool {
	if from == to {
		return true
	}
	visited := &bitset.BitSet{}
	stack := []*node{from}
	visited.Set(from.id)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range n.edges {
			if next == to {
				return true
			}
			if !visited.Get(next.id) {
				visited.Set(next.id)
				stack = append(stack, next)
			}
		}
	}
	return false
}

// HasCycles reports whether any edge insertion was ever refused.
func (g *Graph) HasCycles() bool { return g.hasCycles }

// NumNodes returns the number of writes the graph has seen.
func (g *Graph) NumNodes() int { return len(g.nodeList) }

// DumpNodes writes the graph's nodes and mo edges in Graphviz syntax. The
// caller supplies the surrounding digraph block.
func (g *Graph) DumpNodes(w io.Writer) {
	for _, n := range g.nodeList {
		DotPrintNode(w, n.act)
		for _, e := range n.edges {
			DotPrintEdge(w, n.act, e.act, "label=\"mo\", color=black")
		}
	}
}

// DotPrintNode writes one Graphviz node for act.
func DotPrintNode(w io.Writer, act *action.Action) {
	fmt.Fprintf(w, "N%d [label=\"N%d, T%d, %s\"];\n", act.Seq(), act.Seq(), act.TID(), act.Kind())
}

// DotPrintEdge writes one Graphviz edge between two actions with the given
// attribute list.
func DotPrintEdge(w io.Writer, from, to *action.Action, attrs string) {
	fmt.Fprintf(w, "N%d -> N%d [%s];\n", from.Seq(), to.Seq(), attrs)
}
