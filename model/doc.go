// Package model provides the public API for the c11tester execution
// core: a stateless model checker for C/C++11 relaxed-memory concurrent
// programs, written in pure Go.
//
// The execution core explores one feasible interleaving of a modeled
// multithreaded program per run. For each atomic read it chooses a write
// to read from consistent with the C++11 memory model, maintains a
// modification-order graph over writes, tracks happens-before through
// per-thread clock vectors, and handles mutexes, condition variables,
// fences and thread lifecycle. The choices the memory model leaves open
// are delegated to a pluggable oracle; the default oracle is a seeded
// random strategy, so any execution is reproducible from its seed, and a
// record/replay pair can pin an execution down exactly.
//
// # Quick Start
//
// Describe the program as per-thread operation lists and run it:
//
//	p := model.Program{Threads: [][]model.Op{
//		{ // T1
//			{Type: model.Store, Order: model.Relaxed, Loc: dataVar, Value: 42},
//			{Type: model.Store, Order: model.Release, Loc: flagVar, Value: 1},
//		},
//		{ // T2
//			{Type: model.Load, Order: model.Acquire, Loc: flagVar},
//			{Type: model.Load, Order: model.Relaxed, Loc: dataVar},
//		},
//	}}
//	res := model.Run(p, model.Options{Seed: 1})
//	fmt.Println(res.Reads)
//
// Each call to Run performs a single execution. Exploring a program
// means running it many times with different seeds; every execution
// reports the values its reads observed, whether it deadlocked, and the
// full trace table with a stable hash.
//
// # How It Works
//
// The runner spawns one modeled thread per operation list, plus an
// initial thread that creates, joins and finishes them, and drives the
// execution engine one action at a time. The engine:
//
//   - assigns each action a sequence number and a clock vector derived
//     from its thread's previous action;
//   - builds, for every read, the set of writes it may legally observe,
//     and asks the oracle to pick one; picks that violate modification
//     order are discarded and the oracle asked again;
//   - propagates happens-before through release sequences, so an acquire
//     read inherits the release write's clock even across a chain of
//     relaxed read-modify-writes;
//   - keeps the modification-order graph acyclic at all times.
//
// # Determinism
//
// Given the same program and the same oracle decisions, an execution is
// fully deterministic: the trace summaries are byte-identical. Options
// can record the oracle's decisions and replay them later.
package model
