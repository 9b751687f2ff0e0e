package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mergeSpec is a Y-shaped topology where two platforms feed one contended
// edge through a switch: A->J and C->J merge onto J->B (capacity 1).
func mergeSpec() TopologySpec {
	return TopologySpec{
		Nodes: []NodeSpec{
			{Name: "A", Kind: "platform", DwellTicks: 1},
			{Name: "C", Kind: "platform", DwellTicks: 1},
			{Name: "J", Kind: "switch"},
			{Name: "B", Kind: "platform", DwellTicks: 1},
		},
		Edges: []EdgeSpec{
			{From: "A", To: "J", Length: 10, SpeedLimit: 2, Direction: "out"},
			{From: "C", To: "J", Length: 10, SpeedLimit: 2, Direction: "out"},
			{From: "J", To: "B", Length: 10, SpeedLimit: 2, Direction: "main"},
			{From: "B", To: "A", Length: 10, SpeedLimit: 2, Direction: "backA"},
			{From: "B", To: "C", Length: 10, SpeedLimit: 2, Direction: "backC"},
		},
	}
}

func newTestController(t *testing.T, spec TopologySpec) (*TrainController, *Topology) {
	t.Helper()
	topo, err := BuildTopology(spec)
	require.NoError(t, err)
	return NewTrainController(topo, NewMetrics(), nil), topo
}

// stepTo drives a single train with Hold actions for n ticks.
func stepTo(t *testing.T, tc *TrainController, id TrainID, n int) AdvanceResult {
	t.Helper()
	var res AdvanceResult
	for i := 0; i < n; i++ {
		var err error
		res, err = tc.Advance(id, Hold(), 1.0, int64(i))
		require.NoError(t, err)
	}
	return res
}

func mustNode(t *testing.T, topo *Topology, name string) NodeID {
	t.Helper()
	id, ok := topo.NodeByName(name)
	require.True(t, ok, "node %q not found", name)
	return id
}

func TestSpawn_AtPlatform_CreatesDwellingTrain(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")

	id, err := tc.Spawn(a, "fwd")
	require.NoError(t, err)

	tr, ok := tc.Train(id)
	require.True(t, ok)
	assert.Equal(t, TrainDwelling, tr.State)
	assert.Equal(t, NoEdge, tr.Edge)
	assert.Equal(t, a, tr.AtNode)
	assert.Zero(t, tr.Velocity)
}

func TestSpawn_AtSwitch_Fails(t *testing.T) {
	tc, topo := newTestController(t, switchSpec())
	j := mustNode(t, topo, "J")

	_, err := tc.Spawn(j, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a platform")
}

func TestSpawn_AtOccupiedPlatform_Fails(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")

	_, err := tc.Spawn(a, "fwd")
	require.NoError(t, err)
	_, err = tc.Spawn(a, "fwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "occupied")
}

func TestDespawn_UnknownTrain_ReportsWithoutCrashing(t *testing.T) {
	tc, _ := newTestController(t, lineSpec())

	err := tc.Despawn(99)
	var unknown *UnknownTrainError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, TrainID(99), unknown.Train)

	// Idempotent-safe: repeating is still only a reported warning.
	err = tc.Despawn(99)
	require.True(t, errors.As(err, &unknown))
}

func TestDespawn_FreesPlatformForRespawn(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")

	id, err := tc.Spawn(a, "fwd")
	require.NoError(t, err)
	require.NoError(t, tc.Despawn(id))

	_, err = tc.Spawn(a, "fwd")
	assert.NoError(t, err)
}

func TestAdvance_UnknownTrain_Error(t *testing.T) {
	tc, _ := newTestController(t, lineSpec())

	_, err := tc.Advance(42, Hold(), 1.0, 0)
	var unknown *UnknownTrainError
	require.True(t, errors.As(err, &unknown))
}

func TestAdvance_ProceedFromPlatform_EntersEdgeAtLineSpeed(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")
	id, _ := tc.Spawn(a, "fwd")

	res, err := tc.Advance(id, Proceed("fwd"), 1.0, 0)
	require.NoError(t, err)
	assert.Equal(t, TrainRunning, res.State)
	require.NotEqual(t, NoEdge, res.EnteredEdge)

	tr, _ := tc.Train(id)
	assert.Equal(t, "A-B", topo.Edge(tr.Edge).Name)
	assert.Zero(t, tr.Offset)
	assert.Equal(t, topo.Edge(tr.Edge).SpeedLimit, tr.Velocity)
}

func TestAdvance_VelocityCappedSilently(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")
	id, _ := tc.Spawn(a, "fwd")
	_, err := tc.Advance(id, Proceed("fwd"), 1.0, 0)
	require.NoError(t, err)

	// Requesting far beyond the limit is capped, not an error.
	_, err = tc.Advance(id, Accelerate(1000), 1.0, 1)
	require.NoError(t, err)

	tr, _ := tc.Train(id)
	limit := topo.Edge(tr.Edge).SpeedLimit
	assert.Equal(t, limit, tr.Velocity)
}

func TestAdvance_OffsetAlwaysWithinEdgeBounds(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")
	id, _ := tc.Spawn(a, "fwd")
	_, err := tc.Advance(id, Proceed("fwd"), 1.0, 0)
	require.NoError(t, err)

	for tick := int64(1); tick < 30; tick++ {
		_, err := tc.Advance(id, Hold(), 1.0, tick)
		require.NoError(t, err)
		tr, ok := tc.Train(id)
		require.True(t, ok)
		if tr.Edge != NoEdge {
			edge := topo.Edge(tr.Edge)
			assert.GreaterOrEqual(t, tr.Offset, 0.0)
			assert.LessOrEqual(t, tr.Offset, edge.Length)
			assert.LessOrEqual(t, tr.Velocity, edge.SpeedLimit)
		}
	}
}

func TestAdvance_ArrivalAtPlatform_DwellsEvenWhenProceeding(t *testing.T) {
	// GIVEN a train one step short of platform B
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")
	id, _ := tc.Spawn(a, "fwd")
	_, err := tc.Advance(id, Proceed("fwd"), 1.0, 0)
	require.NoError(t, err)
	stepTo(t, tc, id, 4) // offset 8 of 10 at speed 2

	// WHEN the arrival tick carries a Proceed action
	res, err := tc.Advance(id, Proceed("back"), 1.0, 5)
	require.NoError(t, err)

	// THEN the tie resolves in favor of dwelling at the platform
	b := mustNode(t, topo, "B")
	assert.Equal(t, b, res.ArrivedAt)
	assert.Equal(t, TrainDwelling, res.State)
	tr, _ := tc.Train(id)
	assert.Equal(t, NoEdge, tr.Edge)
	assert.Zero(t, tr.Velocity)
	assert.Equal(t, topo.Node(b).DwellTicks, tr.DwellRemaining)
}

func TestAdvance_ArrivalWithDwellAction_UsesCommandedDuration(t *testing.T) {
	tc, _ := newTestController(t, lineSpec())
	a := mustNode(t, tc.topo, "A")
	id, _ := tc.Spawn(a, "fwd")
	_, err := tc.Advance(id, Proceed("fwd"), 1.0, 0)
	require.NoError(t, err)
	stepTo(t, tc, id, 4)

	_, err = tc.Advance(id, Dwell(7), 1.0, 5)
	require.NoError(t, err)

	tr, _ := tc.Train(id)
	assert.Equal(t, TrainDwelling, tr.State)
	assert.Equal(t, 7, tr.DwellRemaining)
}

func TestAdvance_DwellThenDepart_ExactTickCounts(t *testing.T) {
	// Mirrors the canonical dwell/depart sequence: a dwell of 2 ticks keeps
	// the train at the platform for exactly 2 ticks; the next proceed puts
	// it on the edge at offset 0.
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")
	id, _ := tc.Spawn(a, "fwd")

	// Tick 0: dwell command (first dwell tick).
	res, err := tc.Advance(id, Dwell(2), 1.0, 0)
	require.NoError(t, err)
	assert.Equal(t, TrainDwelling, res.State)

	// Tick 1: movement command deferred while the dwell runs out.
	res, err = tc.Advance(id, Proceed("fwd"), 1.0, 1)
	require.NoError(t, err)
	assert.Equal(t, TrainDwelling, res.State)
	tr, _ := tc.Train(id)
	assert.Equal(t, a, tr.AtNode)
	assert.Zero(t, tr.Offset)

	// Tick 2: dwell complete, proceed departs.
	res, err = tc.Advance(id, Proceed("fwd"), 1.0, 2)
	require.NoError(t, err)
	assert.Equal(t, TrainRunning, res.State)
	tr, _ = tc.Train(id)
	assert.Zero(t, tr.Offset)
	assert.Equal(t, "A-B", topo.Edge(tr.Edge).Name)
}

func TestAdvance_SwitchRouting_DefaultHintAndFallback(t *testing.T) {
	tests := []struct {
		name         string
		direction    string
		wantEdge     string
		wantFallback bool
	}{
		{"no hint routes to priority edge", "", "J-B", false},
		{"hint selects matching edge", "loop", "J-C", false},
		{"unmatched hint falls back to default", "sideways", "J-B", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl, topo := newTestController(t, switchSpec())
			a := mustNode(t, topo, "A")
			id, _ := ctrl.Spawn(a, "")
			_, err := ctrl.Advance(id, Proceed(""), 1.0, 0)
			require.NoError(t, err)
			stepTo(t, ctrl, id, 4) // offset 8 of 10 approaching J

			// The arrival tick carries the routing hint for the switch.
			res, err := ctrl.Advance(id, Proceed(tc.direction), 1.0, 5)
			require.NoError(t, err)

			tr, _ := ctrl.Train(id)
			require.NotEqual(t, NoEdge, tr.Edge)
			assert.Equal(t, tc.wantEdge, topo.Edge(tr.Edge).Name)
			assert.Equal(t, TrainRunning, res.State)
			assert.Equal(t, tc.wantFallback, res.RouteFallback)
			assert.Zero(t, tr.Offset, "offset resets on the new edge")
		})
	}
}

func TestAdvance_SwitchContinuation_KeepsSpeed(t *testing.T) {
	ctrl, topo := newTestController(t, switchSpec())
	a := mustNode(t, topo, "A")
	id, _ := ctrl.Spawn(a, "")
	_, err := ctrl.Advance(id, Proceed(""), 1.0, 0)
	require.NoError(t, err)
	stepTo(t, ctrl, id, 4)

	res, err := ctrl.Advance(id, Hold(), 1.0, 5)
	require.NoError(t, err)

	// Switches resolve in favor of immediate continuation: no dwell.
	assert.Equal(t, TrainRunning, res.State)
	tr, _ := ctrl.Train(id)
	assert.Equal(t, 2.0, tr.Velocity)
}

func TestAdvance_CapacityContention_FirstIDWinsOtherHalts(t *testing.T) {
	// GIVEN two trains arriving at the merge switch on the same tick
	ctrl, topo := newTestController(t, mergeSpec())
	a := mustNode(t, topo, "A")
	c := mustNode(t, topo, "C")
	t1, err := ctrl.Spawn(a, "out")
	require.NoError(t, err)
	t2, err := ctrl.Spawn(c, "out")
	require.NoError(t, err)
	require.Less(t, t1, t2)

	for _, id := range []TrainID{t1, t2} {
		_, err := ctrl.Advance(id, Proceed("out"), 1.0, 0)
		require.NoError(t, err)
	}
	for tick := int64(1); tick < 5; tick++ {
		for _, id := range []TrainID{t1, t2} {
			_, err := ctrl.Advance(id, Hold(), 1.0, tick)
			require.NoError(t, err)
		}
	}

	// WHEN both reach J and want the capacity-1 edge J->B, in id order
	res1, err := ctrl.Advance(t1, Hold(), 1.0, 5)
	require.NoError(t, err)
	res2, err := ctrl.Advance(t2, Hold(), 1.0, 5)
	require.NoError(t, err)

	// THEN exactly the first-processed train proceeds
	assert.Equal(t, TrainRunning, res1.State)
	assert.False(t, res1.Blocked)
	assert.Equal(t, TrainHalted, res2.State)
	assert.True(t, res2.Blocked)

	// AND the halted train retries every tick while the edge stays full
	for tick := int64(6); tick < 10; tick++ {
		_, err = ctrl.Advance(t1, Hold(), 1.0, tick)
		require.NoError(t, err)
		res2, err = ctrl.Advance(t2, Hold(), 1.0, tick)
		require.NoError(t, err)
		assert.Equal(t, TrainHalted, res2.State)
		assert.True(t, res2.Blocked)
	}

	// t1 reaches B on tick 10 and frees J->B; t2 is processed after t1, so
	// its retry on the same tick succeeds.
	res1, err = ctrl.Advance(t1, Hold(), 1.0, 10)
	require.NoError(t, err)
	assert.Equal(t, TrainDwelling, res1.State)
	res2, err = ctrl.Advance(t2, Hold(), 1.0, 10)
	require.NoError(t, err)
	assert.Equal(t, TrainRunning, res2.State)
	tr2, _ := ctrl.Train(t2)
	assert.Equal(t, "J-B", topo.Edge(tr2.Edge).Name)
}

func TestAdvance_OccupiedPlatform_HaltsArrivalUntilFree(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")
	b := mustNode(t, topo, "B")

	// A second train is parked at B.
	parked, err := tc.Spawn(b, "back")
	require.NoError(t, err)

	id, err := tc.Spawn(a, "fwd")
	require.NoError(t, err)
	_, err = tc.Advance(id, Proceed("fwd"), 1.0, 0)
	require.NoError(t, err)
	stepTo(t, tc, id, 4)

	res, err := tc.Advance(id, Hold(), 1.0, 5)
	require.NoError(t, err)
	assert.Equal(t, TrainHalted, res.State)
	assert.True(t, res.Blocked)

	// Platform frees when the parked train departs; the halted train's next
	// retry enters and dwells.
	_, err = tc.Advance(parked, Proceed("back"), 1.0, 6)
	require.NoError(t, err)
	res, err = tc.Advance(id, Hold(), 1.0, 7)
	require.NoError(t, err)
	assert.Equal(t, TrainDwelling, res.State)
	tr, _ := tc.Train(id)
	assert.Equal(t, b, tr.AtNode)
}

func TestAdvance_ArrivingState_WithinEpsilonOfEdgeEnd(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	tc.ArrivalEpsilon = 2.5
	a := mustNode(t, topo, "A")
	id, _ := tc.Spawn(a, "fwd")
	_, err := tc.Advance(id, Proceed("fwd"), 1.0, 0)
	require.NoError(t, err)

	stepTo(t, tc, id, 3) // offset 6: still running
	tr, _ := tc.Train(id)
	assert.Equal(t, TrainRunning, tr.State)

	stepTo(t, tc, id, 1) // offset 8: within 2.5 of the end
	tr, _ = tc.Train(id)
	assert.Equal(t, TrainArriving, tr.State)
}

func TestAdvance_HoldAndAccelerateAtPlatform_StayDwelling(t *testing.T) {
	tc, topo := newTestController(t, lineSpec())
	a := mustNode(t, topo, "A")
	id, _ := tc.Spawn(a, "fwd")

	for tick, action := range []Action{Hold(), Accelerate(5)} {
		res, err := tc.Advance(id, action, 1.0, int64(tick))
		require.NoError(t, err)
		assert.Equal(t, TrainDwelling, res.State)
	}
	tr, _ := tc.Train(id)
	assert.Equal(t, a, tr.AtNode)
	assert.Zero(t, tr.Velocity)
}

func TestConservation_TrainSetChangesOnlyViaSpawnDespawn(t *testing.T) {
	tc, topo := newTestController(t, mergeSpec())
	a := mustNode(t, topo, "A")
	c := mustNode(t, topo, "C")
	t1, _ := tc.Spawn(a, "out")
	t2, _ := tc.Spawn(c, "out")

	before := tc.TrainIDs()
	for tick := int64(0); tick < 20; tick++ {
		for _, id := range tc.TrainIDs() {
			_, err := tc.Advance(id, Proceed(""), 1.0, tick)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, before, tc.TrainIDs(), "no tick silently creates or drops a train")

	require.NoError(t, tc.Despawn(t1))
	assert.Equal(t, []TrainID{t2}, tc.TrainIDs())
}
