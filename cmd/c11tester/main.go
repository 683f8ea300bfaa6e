// Package main implements the c11tester CLI.
//
// The tool runs built-in litmus programs through the model-checker
// execution core, one randomized execution per seed, and prints the
// per-execution trace summaries together with a tally of the observed
// read outcomes.
//
// Usage:
//
//	c11tester run [flags] <litmus>   # explore a litmus program
//	c11tester list                   # list the built-in programs
//	c11tester version                # print version information
//
// This is the CLI entry point; the engine itself lives in the model
// package.
package main

import (
	"fmt"
	"os"

	"github.com/wintered/c11tester/model"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "run":
		runCommand(os.Args[2:])
	case "list":
		listCommand()
	case "version", "--version", "-v":
		info := model.GetInfo()
		fmt.Printf("c11tester version %s (%s)\n", info.Version, info.MemoryModel)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`c11tester - C/C++11 relaxed-memory model checker

USAGE:
    c11tester run [flags] <litmus>   Explore a built-in litmus program
    c11tester list                   List the built-in litmus programs
    c11tester version                Print version information

RUN FLAGS:
    -n, --executions N   Number of executions to explore (default 10)
    -s, --seed S         Base seed; execution i uses S+i (default 0)
        --uninit V       Value observed by uninitialized reads (default 0)
        --quiet          Suppress per-execution trace summaries
        --dot FILE       Write the last execution's mo/sb/rf graph to FILE
        --verbosity N    Logging verbosity for engine tracing

Run 'c11tester list' to see the available litmus programs.
`)
}

func listCommand() {
	fmt.Println("Built-in litmus programs:")
	for _, l := range litmusList {
		fmt.Printf("    %-16s %s\n", l.name, l.desc)
	}
}
