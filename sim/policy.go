// Policies drive trains in self-rolling mode. A Policy is a pure decision
// function over the train view, the topology, and the latest environment
// snapshot; it must not mutate any of its inputs or retain state across calls
// beyond what it was constructed with.

package sim

import (
	"fmt"
	"math/rand"
)

// Policy decides one control action per train per tick.
type Policy interface {
	Decide(view TrainSnapshot, topo *Topology, snap *Snapshot) Action
}

// AlwaysProceed departs as soon as a dwell completes and otherwise keeps the
// train rolling at line speed. It is the deterministic baseline strategy.
type AlwaysProceed struct{}

// Decide implements Policy for AlwaysProceed.
func (p *AlwaysProceed) Decide(view TrainSnapshot, _ *Topology, _ *Snapshot) Action {
	if view.State == TrainDwelling && view.DwellRemaining == 0 {
		return Proceed(view.Direction)
	}
	return Hold()
}

// DwellThenProceed dwells at every platform for a fixed duration, then
// departs. A zero DwellTicks defers to each platform's default dwell.
type DwellThenProceed struct {
	DwellTicks int
}

// Decide implements Policy for DwellThenProceed.
func (p *DwellThenProceed) Decide(view TrainSnapshot, _ *Topology, _ *Snapshot) Action {
	switch view.State {
	case TrainArriving:
		// Carried into the arrival tick so the platform uses this dwell
		// duration instead of its default.
		return Dwell(p.DwellTicks)
	case TrainDwelling:
		if view.DwellRemaining == 0 {
			return Proceed(view.Direction)
		}
	}
	return Hold()
}

// RandomWalk flips a seeded coin between staying put and proceeding, and
// picks a uniformly random outgoing direction at nodes with a choice. With a
// fixed seed the walk is fully reproducible.
type RandomWalk struct {
	rng *rand.Rand
}

// NewRandomWalk creates a RandomWalk backed by the given RNG. The RNG should
// come from a PartitionedRNG subsystem so runs stay deterministic.
func NewRandomWalk(rng *rand.Rand) *RandomWalk {
	if rng == nil {
		panic("NewRandomWalk: rng must not be nil")
	}
	return &RandomWalk{rng: rng}
}

// Decide implements Policy for RandomWalk.
func (p *RandomWalk) Decide(view TrainSnapshot, topo *Topology, _ *Snapshot) Action {
	if view.State != TrainDwelling || view.DwellRemaining > 0 {
		return Hold()
	}
	if p.rng.Intn(2) == 0 {
		return Hold()
	}
	out := topo.NeighborsOut(view.Node)
	if len(out) == 0 {
		return Hold()
	}
	chosen := out[p.rng.Intn(len(out))]
	return Proceed(topo.Edge(chosen).Direction)
}

// Policy names accepted by NewPolicy.
const (
	PolicyAlwaysProceed    = "always-proceed"
	PolicyDwellThenProceed = "dwell-then-proceed"
	PolicyRandomWalk       = "random-walk"
)

// NewPolicy creates a policy by name. The RNG partition seeds stochastic
// policies; deterministic policies ignore it. An unknown name is a
// PolicyConfigError: a train left without a valid policy in self-rolling
// mode is a startup failure, never a runtime fallback.
func NewPolicy(name string, rng *PartitionedRNG) (Policy, error) {
	switch name {
	case PolicyAlwaysProceed:
		return &AlwaysProceed{}, nil
	case PolicyDwellThenProceed:
		return &DwellThenProceed{}, nil
	case PolicyRandomWalk:
		if rng == nil {
			return nil, &PolicyConfigError{Detail: fmt.Sprintf("policy %q requires a seeded RNG", name)}
		}
		return NewRandomWalk(rng.ForSubsystem(SubsystemPolicy)), nil
	default:
		return nil, &PolicyConfigError{Detail: fmt.Sprintf(
			"unknown policy %q; valid policies: [%s, %s, %s]",
			name, PolicyAlwaysProceed, PolicyDwellThenProceed, PolicyRandomWalk)}
	}
}
