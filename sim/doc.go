// Package sim implements a tick-driven simulation of train movement across a
// metro network topology.
//
// The pieces fit together as follows: BuildTopology freezes a graph of
// platform and switch nodes joined by directed line segments; TrainController
// owns all live trains and applies control actions against the topology's
// speed and capacity constraints; Policy implementations (self-rolling mode)
// or the CommandChannel (delegated mode) supply one action per train per
// tick; Environment binds them, drives the clock, and publishes an immutable
// Snapshot after every tick for external consumers such as renderers.
//
// The core is single-threaded: one goroutine owns the Environment and all
// mutable state. Given the same topology, seed, and action sources, two runs
// produce identical snapshot sequences.
package sim
