// TrainController owns the set of live trains. It creates and removes trains
// and applies control actions against topology constraints: position and
// velocity clamping, segment transitions, switch routing, and edge/platform
// capacity. All mutation of train state happens here.

package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/metro-sim/metro-sim/sim/trace"
)

// DefaultArrivalEpsilon is the distance from the edge end below which a
// running train is reported as Arriving.
const DefaultArrivalEpsilon = 0.5

// AdvanceResult reports what happened to one train during a single Advance.
type AdvanceResult struct {
	Train         TrainID
	State         TrainState
	EnteredEdge   EdgeID // edge entered this tick, NoEdge otherwise
	ArrivedAt     NodeID // node reached this tick, NoNode otherwise
	RouteFallback bool   // switch hint matched nothing, default route used
	Blocked       bool   // capacity rejected the train this tick
}

// TrainController manages train lifecycle and movement.
//
// It is not safe for concurrent use; the Environment's single simulation
// goroutine is the only caller.
type TrainController struct {
	topo    *Topology
	trains  map[TrainID]*Train
	nextID  TrainID
	edgeOcc map[EdgeID]int
	nodeOcc map[NodeID]int
	metrics *Metrics
	tracer  *trace.SimulationTrace
	// ArrivalEpsilon is the Arriving-state distance threshold.
	ArrivalEpsilon float64
}

// NewTrainController creates a controller bound to a frozen topology.
// tracer may be nil to disable decision tracing.
func NewTrainController(topo *Topology, metrics *Metrics, tracer *trace.SimulationTrace) *TrainController {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &TrainController{
		topo:           topo,
		trains:         make(map[TrainID]*Train),
		nextID:         1,
		edgeOcc:        make(map[EdgeID]int),
		nodeOcc:        make(map[NodeID]int),
		metrics:        metrics,
		tracer:         tracer,
		ArrivalEpsilon: DefaultArrivalEpsilon,
	}
}

// NumTrains returns the number of live trains.
func (tc *TrainController) NumTrains() int { return len(tc.trains) }

// TrainIDs returns the live train ids in ascending order. This is the
// per-tick processing order; it must be deterministic across runs.
func (tc *TrainController) TrainIDs() []TrainID {
	ids := make([]TrainID, 0, len(tc.trains))
	for id := range tc.trains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Train returns the live train for id. The pointer is owned by the
// controller; callers outside this package observe trains via snapshots.
func (tc *TrainController) Train(id TrainID) (*Train, bool) {
	tr, ok := tc.trains[id]
	return tr, ok
}

// Spawn creates a new train dwelling at the given platform node.
// It fails if the node is not a platform or is already occupied.
func (tc *TrainController) Spawn(at NodeID, direction string) (TrainID, error) {
	node := tc.topo.Node(at)
	if node == nil {
		return 0, fmt.Errorf("spawn: node %d does not exist", at)
	}
	if node.Kind != NodePlatform {
		return 0, fmt.Errorf("spawn: node %q is not a platform", node.Name)
	}
	if tc.nodeOcc[at] >= 1 {
		return 0, fmt.Errorf("spawn: platform %q is occupied", node.Name)
	}

	id := tc.nextID
	tc.nextID++
	tc.trains[id] = &Train{
		ID:          id,
		Edge:        NoEdge,
		AtNode:      at,
		Direction:   direction,
		State:       TrainDwelling,
		pendingEdge: NoEdge,
		pendingNode: NoNode,
	}
	tc.nodeOcc[at]++
	tc.metrics.Spawns++
	logrus.Infof("train %d spawned at platform %q", id, node.Name)
	return id, nil
}

// Despawn removes a train. Unknown ids are reported with a warning and an
// UnknownTrainError; the call is otherwise a no-op, so repeated despawns are
// safe.
func (tc *TrainController) Despawn(id TrainID) error {
	tr, ok := tc.trains[id]
	if !ok {
		logrus.Warnf("despawn: unknown train %d", id)
		return &UnknownTrainError{Train: id}
	}
	if tr.Edge != NoEdge {
		tc.edgeOcc[tr.Edge]--
	} else {
		tc.nodeOcc[tr.AtNode]--
	}
	delete(tc.trains, id)
	tc.metrics.Despawns++
	logrus.Infof("train %d despawned", id)
	return nil
}

// Halt forcibly marks a train Halted in place. Used by the Environment to
// contain a faulting train without aborting the tick.
func (tc *TrainController) Halt(id TrainID) {
	if tr, ok := tc.trains[id]; ok {
		tr.State = TrainHalted
		tr.Velocity = 0
	}
}

// Snapshot produces an immutable copy of all train states at the given tick,
// ordered by train id.
func (tc *TrainController) Snapshot(tick int64) *Snapshot {
	ids := tc.TrainIDs()
	snap := &Snapshot{Tick: tick, Trains: make([]TrainSnapshot, 0, len(ids))}
	for _, id := range ids {
		snap.Trains = append(snap.Trains, snapshotTrain(tc.trains[id]))
	}
	return snap
}

// Advance applies one control action to one train for a dt-long tick.
// Velocity requests beyond the edge speed limit are silently capped, never an
// error; capacity rejections surface as the Halted state, not an error. The
// only error condition is an unknown train id.
func (tc *TrainController) Advance(id TrainID, action Action, dt float64, tick int64) (AdvanceResult, error) {
	tr, ok := tc.trains[id]
	if !ok {
		return AdvanceResult{}, &UnknownTrainError{Train: id}
	}

	res := AdvanceResult{Train: id, EnteredEdge: NoEdge, ArrivedAt: NoNode}
	switch tr.State {
	case TrainHalted:
		tc.retryBlocked(tr, tick, &res)
	case TrainDwelling:
		tc.advanceDwelling(tr, action, tick, &res)
	case TrainRunning, TrainArriving:
		tc.advanceRunning(tr, action, dt, tick, &res)
	}

	res.State = tr.State
	return res, nil
}

// retryBlocked re-attempts entry into the target a halted train is waiting
// on. Halted is re-entrant: the attempt repeats every tick until it succeeds
// or the train is despawned.
func (tc *TrainController) retryBlocked(tr *Train, tick int64, res *AdvanceResult) {
	tc.metrics.HaltedTicks++
	switch {
	case tr.pendingEdge != NoEdge:
		if tc.tryEnterEdge(tr, tr.pendingEdge, res) {
			tr.pendingEdge = NoEdge
		} else {
			res.Blocked = true
		}
	case tr.pendingNode != NoNode:
		if tc.tryEnterNode(tr, tr.pendingNode, tr.pendingDwell, tick, res) {
			tr.pendingNode = NoNode
			tr.pendingDwell = 0
		} else {
			res.Blocked = true
		}
	}
	// A halted train with no pending target stays halted until despawned.
}

// advanceDwelling handles a train stopped at a platform node.
func (tc *TrainController) advanceDwelling(tr *Train, action Action, tick int64, res *AdvanceResult) {
	tc.metrics.DwellTicks++

	// A committed dwell runs to completion; movement commands are deferred.
	if tr.DwellRemaining > 0 {
		tr.DwellRemaining--
		return
	}

	switch action.Kind {
	case ActionDwell:
		duration := action.DwellTicks
		if duration <= 0 {
			duration = tc.topo.Node(tr.AtNode).DwellTicks
		}
		tr.DwellRemaining = duration
		tc.tracer.RecordDwell(trace.DwellRecord{
			Tick: tick, Train: int(tr.ID), Node: int(tr.AtNode), Duration: duration,
		})
		// This tick counts as the first dwell tick.
		tr.DwellRemaining--
	case ActionProceed:
		tc.depart(tr, action.DirectionHint, tick, res)
	default:
		// Hold and Accelerate keep a standing train at its platform.
	}
}

// depart moves a dwelling train from its node onto an outgoing edge.
func (tc *TrainController) depart(tr *Train, hint string, tick int64, res *AdvanceResult) {
	node := tr.AtNode
	if hint != "" {
		tr.Direction = hint
	}
	eid := tc.routeFrom(node, tr, hint, tick, res)
	if eid == NoEdge {
		logrus.Warnf("[tick %07d] train %d cannot depart: node %q has no outgoing edge", tick, tr.ID, tc.topo.Node(node).Name)
		return
	}
	if !tc.tryEnterEdge(tr, eid, res) {
		// Edge full: halt at the platform and retry each tick.
		tr.State = TrainHalted
		tr.pendingEdge = eid
		res.Blocked = true
		tc.metrics.HaltedTicks++
		tc.tracer.RecordHalt(trace.HaltRecord{
			Tick: tick, Train: int(tr.ID), Wanted: int(eid), Reason: "edge at capacity",
		})
		logrus.Infof("[tick %07d] train %d halted: edge %q at capacity", tick, tr.ID, tc.topo.Edge(eid).Name)
	}
}

// advanceRunning handles motion along an edge and arrival at its target node.
func (tc *TrainController) advanceRunning(tr *Train, action Action, dt float64, tick int64, res *AdvanceResult) {
	edge := tc.topo.Edge(tr.Edge)

	if action.Kind == ActionAccelerate {
		tr.Velocity += action.Delta
	}
	tr.Velocity = clampVelocity(tr.Velocity, edge.SpeedLimit)

	tr.Offset += tr.Velocity * dt
	if tr.Offset < 0 {
		tr.Offset = 0
	}
	if tr.Offset < edge.Length {
		if edge.Length-tr.Offset <= tc.ArrivalEpsilon {
			tr.State = TrainArriving
		} else {
			tr.State = TrainRunning
		}
		return
	}
	tr.Offset = edge.Length

	// The train has reached the edge's target node.
	target := edge.To
	res.ArrivedAt = target
	node := tc.topo.Node(target)

	if node.Kind == NodePlatform {
		tc.arriveAtPlatform(tr, node, action, tick, res)
		return
	}
	tc.continueThroughSwitch(tr, node, action, tick, res)
}

// arriveAtPlatform stops an arriving train at a platform. A tie between
// "arrive and dwell" and "arrive and immediately depart" resolves in favor of
// dwelling: every platform arrival dwells, for the commanded duration if the
// action requested one, otherwise the platform default.
func (tc *TrainController) arriveAtPlatform(tr *Train, node *Node, action Action, tick int64, res *AdvanceResult) {
	duration := node.DwellTicks
	if action.Kind == ActionDwell && action.DwellTicks > 0 {
		duration = action.DwellTicks
	}
	if !tc.tryEnterNode(tr, node.ID, duration, tick, res) {
		tr.State = TrainHalted
		tr.Velocity = 0
		tr.pendingNode = node.ID
		tr.pendingDwell = duration
		res.Blocked = true
		tc.tracer.RecordHalt(trace.HaltRecord{
			Tick: tick, Train: int(tr.ID), Wanted: int(NoEdge), Reason: "platform occupied",
		})
		logrus.Infof("[tick %07d] train %d halted: platform %q occupied", tick, tr.ID, node.Name)
	}
}

// continueThroughSwitch routes an arriving train onto the next edge without
// stopping: switches resolve ties in favor of immediate continuation.
func (tc *TrainController) continueThroughSwitch(tr *Train, node *Node, action Action, tick int64, res *AdvanceResult) {
	hint := tr.Direction
	if action.Kind == ActionProceed && action.DirectionHint != "" {
		hint = action.DirectionHint
		tr.Direction = hint
	}
	next := tc.routeFrom(node.ID, tr, hint, tick, res)
	if next == NoEdge {
		// Dead-end switch: nowhere to go. The train stops and stays halted
		// with no pending target until despawned.
		logrus.Warnf("[tick %07d] train %d stranded: switch %q has no outgoing edge", tick, tr.ID, node.Name)
		tr.State = TrainHalted
		tr.Velocity = 0
		return
	}
	if !tc.tryEnterEdge(tr, next, res) {
		tr.State = TrainHalted
		tr.Velocity = 0
		tr.pendingEdge = next
		res.Blocked = true
		tc.tracer.RecordHalt(trace.HaltRecord{
			Tick: tick, Train: int(tr.ID), Wanted: int(next), Reason: "edge at capacity",
		})
		logrus.Infof("[tick %07d] train %d halted: edge %q at capacity", tick, tr.ID, tc.topo.Edge(next).Name)
	}
}

// routeFrom resolves the outgoing edge for a train leaving node, falling back
// to the node's default priority route with a logged warning when the
// requested direction matches no outgoing edge.
func (tc *TrainController) routeFrom(node NodeID, tr *Train, hint string, tick int64, res *AdvanceResult) EdgeID {
	eid, err := tc.topo.ResolveRoute(node, hint)
	fallback := false
	if err != nil {
		eid = tc.topo.DefaultRoute(node)
		if eid == NoEdge {
			return NoEdge
		}
		fallback = true
		tc.metrics.RouteFallbacks++
		res.RouteFallback = true
		logrus.Warnf("[tick %07d] train %d: %v; falling back to default route %q",
			tick, tr.ID, err, tc.topo.Edge(eid).Name)
	}
	tc.tracer.RecordRoute(trace.RouteRecord{
		Tick: tick, Train: int(tr.ID), Node: int(node), Hint: hint,
		Chosen: int(eid), Fallback: fallback,
	})
	return eid
}

// tryEnterEdge moves a train onto eid if the edge has spare capacity.
// A train entering from standstill departs at the edge's speed limit;
// a train carrying speed keeps it, capped to the new limit.
func (tc *TrainController) tryEnterEdge(tr *Train, eid EdgeID, res *AdvanceResult) bool {
	edge := tc.topo.Edge(eid)
	if tc.edgeOcc[eid] >= edge.Capacity {
		return false
	}
	// Release the position being vacated.
	if tr.Edge != NoEdge {
		tc.edgeOcc[tr.Edge]--
	} else if tr.AtNode != NoNode {
		tc.nodeOcc[tr.AtNode]--
		tr.AtNode = NoNode
	}
	tc.edgeOcc[eid]++
	tr.Edge = eid
	tr.Offset = 0
	if tr.Velocity == 0 {
		tr.Velocity = edge.SpeedLimit
	}
	tr.Velocity = clampVelocity(tr.Velocity, edge.SpeedLimit)
	tr.State = TrainRunning
	tc.metrics.SegmentTransitions++
	res.EnteredEdge = eid
	return true
}

// tryEnterNode stops a train at a platform node if the platform is free.
func (tc *TrainController) tryEnterNode(tr *Train, nid NodeID, dwell int, tick int64, res *AdvanceResult) bool {
	if tc.nodeOcc[nid] >= 1 {
		return false
	}
	if tr.Edge != NoEdge {
		tc.edgeOcc[tr.Edge]--
		tr.Edge = NoEdge
	}
	tc.nodeOcc[nid]++
	tr.AtNode = nid
	tr.Offset = 0
	tr.Velocity = 0
	tr.State = TrainDwelling
	tr.DwellRemaining = dwell
	tc.tracer.RecordDwell(trace.DwellRecord{
		Tick: tick, Train: int(tr.ID), Node: int(nid), Duration: dwell,
	})
	return true
}

// clampVelocity caps the magnitude of v to limit, preserving sign.
func clampVelocity(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
