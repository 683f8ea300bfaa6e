package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"
	"v.io/x/lib/vlog"

	"github.com/wintered/c11tester/model"
)

// runCommand explores one litmus program over a range of seeds and
// reports the outcome distribution.
func runCommand(args []string) {
	flags := pflag.NewFlagSet("run", pflag.ExitOnError)
	executions := flags.IntP("executions", "n", 10, "number of executions to explore")
	seed := flags.Int64P("seed", "s", 0, "base seed; execution i uses seed+i")
	uninit := flags.Uint64("uninit", 0, "value observed by uninitialized reads")
	quiet := flags.Bool("quiet", false, "suppress per-execution trace summaries")
	dotFile := flags.String("dot", "", "write the last execution's mo/sb/rf graph to this file")
	verbosity := flags.Int("verbosity", 0, "logging verbosity for engine tracing")
	if err := flags.Parse(args); err != nil {
		os.Exit(1)
	}

	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "run: exactly one litmus program name expected")
		listCommand()
		os.Exit(1)
	}

	if *verbosity > 0 {
		if err := vlog.Configure(vlog.Level(*verbosity)); err != nil {
			fmt.Fprintf(os.Stderr, "configuring logger: %v\n", err)
			os.Exit(1)
		}
	}

	lit := findLitmus(flags.Arg(0))
	if lit == nil {
		fmt.Fprintf(os.Stderr, "unknown litmus program %q\n", flags.Arg(0))
		listCommand()
		os.Exit(1)
	}

	tally := make(map[string]int)
	deadlocks := 0

	for i := 0; i < *executions; i++ {
		opts := model.Options{
			Seed:        *seed + int64(i),
			UninitValue: *uninit,
			Number:      i + 1,
		}

		var dot *os.File
		if *dotFile != "" && i == *executions-1 {
			f, err := os.Create(*dotFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "creating graph dump: %v\n", err)
				os.Exit(1)
			}
			dot = f
			opts.DumpGraph = f
		}

		res := model.Run(lit.program(), opts)

		if dot != nil {
			if err := dot.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "writing graph dump: %v\n", err)
				os.Exit(1)
			}
		}

		if !*quiet {
			fmt.Print(res.Summary)
		}
		if !res.MoAcyclic {
			fmt.Fprintf(os.Stderr, "execution %d: modification-order cycle\n", i+1)
			os.Exit(1)
		}
		if res.Deadlocked {
			deadlocks++
		}
		tally[lit.outcome(res)]++
	}

	fmt.Printf("%s: %d executions, %d deadlocked\n", lit.name, *executions, deadlocks)
	outcomes := make([]string, 0, len(tally))
	for o := range tally {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Printf("    %-24s %d\n", o, tally[o])
	}
}
