// Snapshots are the sole hand-off point between the simulation core and
// external consumers (renderers, loggers). They are value copies produced
// once per tick and never alias live train state.

package sim

import "github.com/samber/lo"

// TrainSnapshot is a read-only copy of one train's state at a tick boundary.
// It doubles as the train view passed to policies.
type TrainSnapshot struct {
	ID             TrainID
	Edge           EdgeID // NoEdge when the train is at a node
	Node           NodeID // NoNode when the train is on an edge
	Offset         float64
	Velocity       float64
	Direction      string
	State          TrainState
	DwellRemaining int
}

// Snapshot is a point-in-time copy of all train states plus the simulation
// clock, ordered by train id. Consumers cannot mutate simulation state
// through it.
type Snapshot struct {
	Tick   int64
	Trains []TrainSnapshot
}

// TrainByID returns the snapshot entry for the given train, if present.
func (s *Snapshot) TrainByID(id TrainID) (TrainSnapshot, bool) {
	return lo.Find(s.Trains, func(ts TrainSnapshot) bool { return ts.ID == id })
}

// snapshotTrain copies a live train into its read-only view.
func snapshotTrain(tr *Train) TrainSnapshot {
	node := NoNode
	if tr.Edge == NoEdge {
		node = tr.AtNode
	}
	return TrainSnapshot{
		ID:             tr.ID,
		Edge:           tr.Edge,
		Node:           node,
		Offset:         tr.Offset,
		Velocity:       tr.Velocity,
		Direction:      tr.Direction,
		State:          tr.State,
		DwellRemaining: tr.DwellRemaining,
	}
}
