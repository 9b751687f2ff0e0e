// Defines the Train entity and its lifecycle states. Train state is owned
// exclusively by the TrainController for the train's entire lifetime; other
// components observe trains only through snapshots.

package sim

import "fmt"

// TrainID is a dense integer handle assigned by the TrainController. Per-tick
// iteration is in ascending TrainID order for reproducibility.
type TrainID int

// TrainState is the lifecycle state of a train.
type TrainState string

const (
	// TrainDwelling means the train is stopped at a platform node.
	TrainDwelling TrainState = "dwelling"
	// TrainRunning means the train is moving along an edge.
	TrainRunning TrainState = "running"
	// TrainArriving means the train's offset is within epsilon of the edge end.
	TrainArriving TrainState = "arriving"
	// TrainHalted means the train is blocked on a full edge or node and
	// retries entry every tick until it succeeds or is despawned.
	TrainHalted TrainState = "halted"
)

// Train tracks a single train's position and motion within the topology.
// Exactly one of the following holds at any time:
//   - Edge != NoEdge: the train is on that edge at Offset from its start.
//   - Edge == NoEdge: the train is dwelling (or halted) at AtNode.
type Train struct {
	ID       TrainID
	Edge     EdgeID
	AtNode   NodeID
	Offset   float64 // 0 <= Offset <= edge length
	Velocity float64 // |Velocity| <= edge speed limit
	// Direction is the travel direction intent applied at the next switch
	// when the acting command carries no explicit hint.
	Direction string
	State     TrainState
	// DwellRemaining counts the ticks left before a dwelling train may
	// depart. While non-zero the train ignores movement commands.
	DwellRemaining int
	// pendingEdge is the edge a halted train is waiting to enter;
	// pendingNode and pendingDwell are set instead when the train is
	// waiting for an occupied platform.
	pendingEdge  EdgeID
	pendingNode  NodeID
	pendingDwell int
}

func (tr *Train) String() string {
	if tr.Edge == NoEdge {
		return fmt.Sprintf("Train %d at node %d (%s, dwell=%d)", tr.ID, tr.AtNode, tr.State, tr.DwellRemaining)
	}
	return fmt.Sprintf("Train %d on edge %d offset=%.2f v=%.2f (%s)", tr.ID, tr.Edge, tr.Offset, tr.Velocity, tr.State)
}
