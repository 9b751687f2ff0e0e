// Package testutil provides shared topology fixtures for sim package tests.
package testutil

import "github.com/metro-sim/metro-sim/sim"

// LineSpec returns a minimal two-platform line:
//
//	A --ab(len 10, speed 2)--> B --ba--> A
//
// Both edges carry direction "fwd"/"back" respectively so each platform has
// one outgoing edge per direction.
func LineSpec() sim.TopologySpec {
	return sim.TopologySpec{
		Nodes: []sim.NodeSpec{
			{Name: "A", Kind: "platform", DwellTicks: 1},
			{Name: "B", Kind: "platform", DwellTicks: 1},
		},
		Edges: []sim.EdgeSpec{
			{From: "A", To: "B", Length: 10, SpeedLimit: 2, Direction: "fwd"},
			{From: "B", To: "A", Length: 10, SpeedLimit: 2, Direction: "back"},
		},
	}
}

// SwitchSpec returns a junction topology with a routing choice:
//
//	A --> J --main--> B --> A
//	      J --loop--> C --> A
//
// J is a switch whose priority order is [J->B, J->C], so J->B is the default
// route.
func SwitchSpec() sim.TopologySpec {
	return sim.TopologySpec{
		Nodes: []sim.NodeSpec{
			{Name: "A", Kind: "platform", DwellTicks: 1},
			{Name: "J", Kind: "switch"},
			{Name: "B", Kind: "platform", DwellTicks: 1},
			{Name: "C", Kind: "platform", DwellTicks: 1},
		},
		Edges: []sim.EdgeSpec{
			{From: "A", To: "J", Length: 10, SpeedLimit: 2, Direction: "out"},
			{From: "J", To: "B", Length: 10, SpeedLimit: 2, Direction: "main"},
			{From: "J", To: "C", Length: 10, SpeedLimit: 2, Direction: "loop"},
			{From: "B", To: "A", Length: 10, SpeedLimit: 2, Direction: "back"},
			{From: "C", To: "A", Length: 10, SpeedLimit: 2, Direction: "back"},
		},
	}
}

// MustBuild builds a topology from spec, panicking on error. Test helper.
func MustBuild(spec sim.TopologySpec) *sim.Topology {
	topo, err := sim.BuildTopology(spec)
	if err != nil {
		panic(err)
	}
	return topo
}
