package sim

// DefaultScenario returns the built-in demo scenario: a two-track metro line
// d1—s11..s16—d2 with a branch loop s21..s26 hanging off the junction after
// s14 and rejoining at s15. Trains run the main line in both directions under
// the always-proceed policy; the branch is reachable with a "branch"
// direction hint.
func DefaultScenario() *ScenarioSpec {
	nodes := []NodeSpec{
		{Name: "d1", Kind: "platform", DwellTicks: 4, Pos: Point{X: 0, Y: 0}},
		{Name: "s11", Kind: "platform", Pos: Point{X: 1, Y: 0}},
		{Name: "s12", Kind: "platform", Pos: Point{X: 2, Y: 0}},
		{Name: "s13", Kind: "platform", Pos: Point{X: 3, Y: 0}},
		{Name: "s14", Kind: "platform", Pos: Point{X: 4, Y: 0}},
		{Name: "j1", Kind: "switch", Pos: Point{X: 4.5, Y: 0}},
		{Name: "s15", Kind: "platform", Pos: Point{X: 5, Y: 0}},
		{Name: "s16", Kind: "platform", Pos: Point{X: 6, Y: 0}},
		{Name: "d2", Kind: "platform", DwellTicks: 4, Pos: Point{X: 7, Y: 0}},
		{Name: "s21", Kind: "platform", Pos: Point{X: 4.5, Y: 1}},
		{Name: "s22", Kind: "platform", Pos: Point{X: 5, Y: 1}},
		{Name: "s23", Kind: "platform", Pos: Point{X: 5.5, Y: 1}},
		{Name: "s24", Kind: "platform", Pos: Point{X: 6, Y: 1}},
		{Name: "s25", Kind: "platform", Pos: Point{X: 6.5, Y: 1}},
		{Name: "s26", Kind: "platform", Pos: Point{X: 7, Y: 1}},
	}

	const (
		segLength = 600.0
		lineSpeed = 20.0
	)
	seg := func(from, to, dir string) EdgeSpec {
		return EdgeSpec{From: from, To: to, Length: segLength, SpeedLimit: lineSpeed, Direction: dir}
	}
	edges := []EdgeSpec{
		// Outbound main line d1 -> d2.
		seg("d1", "s11", "outbound"),
		seg("s11", "s12", "outbound"),
		seg("s12", "s13", "outbound"),
		seg("s13", "s14", "outbound"),
		seg("s14", "j1", "outbound"),
		seg("j1", "s15", "outbound"), // default route at the junction
		seg("j1", "s21", "branch"),
		seg("s15", "s16", "outbound"),
		seg("s16", "d2", "outbound"),
		// Inbound main line d2 -> d1.
		seg("d2", "s16", "inbound"),
		seg("s16", "s15", "inbound"),
		seg("s15", "s14", "inbound"),
		seg("s14", "s13", "inbound"),
		seg("s13", "s12", "inbound"),
		seg("s12", "s11", "inbound"),
		seg("s11", "d1", "inbound"),
		// Branch loop rejoining the main line at s15.
		seg("s21", "s22", "branch"),
		seg("s22", "s23", "branch"),
		seg("s23", "s24", "branch"),
		seg("s24", "s25", "branch"),
		seg("s25", "s26", "branch"),
		seg("s26", "s15", "branch"),
	}

	return &ScenarioSpec{
		Name:   "metro-line",
		Seed:   42,
		Ticks:  500,
		DT:     1.0,
		Mode:   string(ModeSelfRolling),
		Policy: PolicyAlwaysProceed,
		Topology: TopologySpec{
			Nodes: nodes,
			Edges: edges,
		},
		Trains: []TrainSpec{
			{Node: "d1", Direction: "outbound"},
			{Node: "d2", Direction: "inbound"},
		},
	}
}
