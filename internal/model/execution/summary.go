package execution

import (
	"fmt"
	"io"

	"github.com/wintered/c11tester/internal/model/cyclegraph"
)

const summaryRule = "------------------------------------------------------------------------------------"

// PrintSummary writes the execution's trace table: one header line noting
// redundancy and detected bugs, the actions in sequence order, and a
// 32-bit hash over the whole trace so identical executions are cheap to
// compare.
func (ex *Execution) PrintSummary() {
	fmt.Fprintf(ex.out, "Execution trace %d:", ex.executionNumber)
	if ex.scheduler.AllThreadsSleeping() {
		fmt.Fprint(ex.out, " SLEEP-SET REDUNDANT")
	}
	if ex.HaveBugReports() {
		fmt.Fprint(ex.out, " DETECTED BUG(S)")
	}
	fmt.Fprint(ex.out, "\n")

	ex.printTrace()
	fmt.Fprint(ex.out, "\n")
}

func (ex *Execution) printTrace() {
	fmt.Fprintln(ex.out, summaryRule)
	fmt.Fprintln(ex.out, "#    t    Action type     MO       Location         Value               Rf  CV")
	fmt.Fprintln(ex.out, summaryRule)

	var hash uint32
	for _, act := range ex.actionTrace {
		if act.Seq() > 0 {
			fmt.Fprintln(ex.out, act.String())
		}
		hash = hash ^ (hash << 3) ^ act.Hash()
	}
	fmt.Fprintf(ex.out, "HASH %d\n", hash)
	fmt.Fprintln(ex.out, summaryRule)
}

// DumpGraph writes the modification-order graph plus the trace's sb and
// rf edges as a Graphviz digraph.
func (ex *Execution) DumpGraph(w io.Writer, name string) {
	fmt.Fprintf(w, "digraph %s {\n", name)
	ex.moGraph.DumpNodes(w)

	lastByThread := make(map[int]int)
	for i, act := range ex.actionTrace {
		if act.IsRead() && act.ReadsFrom() != nil {
			cyclegraph.DotPrintNode(w, act)
			cyclegraph.DotPrintEdge(w, act.ReadsFrom(), act, "label=\"rf\", color=red, weight=2")
		}
		if prev, ok := lastByThread[act.TID()]; ok {
			cyclegraph.DotPrintEdge(w, ex.actionTrace[prev], act, "label=\"sb\", color=blue, weight=400")
		}
		lastByThread[act.TID()] = i
	}
	fmt.Fprintln(w, "}")
}
