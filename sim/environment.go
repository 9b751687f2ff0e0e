// Environment owns the simulation clock and drives the tick loop. Per tick it
// resolves each train's action source (policy or command channel), advances
// every live train in ascending id order, and publishes an immutable
// snapshot. There is no ambient global state: an Environment is explicitly
// constructed and passed to collaborators.

package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/metro-sim/metro-sim/sim/trace"
)

// Mode selects the action source for a train.
type Mode string

const (
	// ModeSelfRolling drives trains from their assigned Policy each tick.
	ModeSelfRolling Mode = "self-rolling"
	// ModeDelegated drives trains from externally submitted commands.
	ModeDelegated Mode = "delegated"
)

// EnvironmentConfig groups the run parameters of an Environment.
type EnvironmentConfig struct {
	DT         float64     // tick duration; defaults to 1.0
	Mode       Mode        // default action source; defaults to ModeSelfRolling
	Seed       int64       // master seed for stochastic policies
	TraceLevel trace.Level // decision trace verbosity; defaults to none
}

// Environment binds the topology, the train controller, and the action
// sources into a single-threaded, tick-driven simulation. One goroutine owns
// it; snapshots are the only artifact shared across that boundary.
type Environment struct {
	topo     *Topology
	ctrl     *TrainController
	commands *CommandChannel
	rng      *PartitionedRNG
	metrics  *Metrics
	tracer   *trace.SimulationTrace

	defaultMode   Mode
	defaultPolicy Policy
	trainModes    map[TrainID]Mode
	trainPolicies map[TrainID]Policy

	clock  int64
	dt     float64
	paused bool
	latest *Snapshot

	// onSnapshot, when set, receives every published snapshot. Consumers
	// must treat snapshots as read-only.
	onSnapshot func(*Snapshot)
}

// NewEnvironment creates an Environment over a frozen topology.
func NewEnvironment(topo *Topology, cfg EnvironmentConfig) *Environment {
	if cfg.DT == 0 {
		cfg.DT = 1.0
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSelfRolling
	}
	metrics := NewMetrics()
	tracer := trace.New(cfg.TraceLevel)
	return &Environment{
		topo:          topo,
		ctrl:          NewTrainController(topo, metrics, tracer),
		commands:      NewCommandChannel(),
		rng:           NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		metrics:       metrics,
		tracer:        tracer,
		defaultMode:   cfg.Mode,
		trainModes:    make(map[TrainID]Mode),
		trainPolicies: make(map[TrainID]Policy),
		dt:            cfg.DT,
	}
}

// Topology returns the frozen topology.
func (env *Environment) Topology() *Topology { return env.topo }

// Controller returns the train controller. Exposed for tests; external
// consumers read snapshots instead.
func (env *Environment) Controller() *TrainController { return env.ctrl }

// Commands returns the delegated command channel for external actors.
func (env *Environment) Commands() *CommandChannel { return env.commands }

// Metrics returns the run counters.
func (env *Environment) Metrics() *Metrics { return env.metrics }

// Trace returns the decision trace collected so far.
func (env *Environment) Trace() *trace.SimulationTrace { return env.tracer }

// RNG returns the partitioned RNG keyed by the run seed.
func (env *Environment) RNG() *PartitionedRNG { return env.rng }

// Clock returns the current tick counter.
func (env *Environment) Clock() int64 { return env.clock }

// DT returns the tick duration.
func (env *Environment) DT() float64 { return env.dt }

// SetDefaultPolicy sets the policy used by self-rolling trains that have no
// per-train policy.
func (env *Environment) SetDefaultPolicy(p Policy) { env.defaultPolicy = p }

// SetSnapshotListener registers a consumer for published snapshots, such as a
// renderer or logger. Pass nil to remove the listener.
func (env *Environment) SetSnapshotListener(fn func(*Snapshot)) { env.onSnapshot = fn }

// AddTrain spawns a train and binds its action source. An empty mode uses
// the environment default. Exactly one action source resolves per train per
// tick: a self-rolling train without a policy (own or default) is a
// PolicyConfigError at configuration time, never a runtime fallback.
func (env *Environment) AddTrain(at NodeID, direction string, mode Mode, policy Policy) (TrainID, error) {
	if mode == "" {
		mode = env.defaultMode
	}
	if mode != ModeSelfRolling && mode != ModeDelegated {
		return 0, fmt.Errorf("add train: unknown mode %q", mode)
	}
	if mode == ModeSelfRolling && policy == nil && env.defaultPolicy == nil {
		return 0, &PolicyConfigError{Detail: fmt.Sprintf(
			"self-rolling train at node %d has no assigned policy and no default policy is set", at)}
	}
	id, err := env.ctrl.Spawn(at, direction)
	if err != nil {
		return 0, err
	}
	env.trainModes[id] = mode
	if policy != nil {
		env.trainPolicies[id] = policy
	}
	return id, nil
}

// RemoveTrain despawns a train and releases its action source bindings.
func (env *Environment) RemoveTrain(id TrainID) error {
	err := env.ctrl.Despawn(id)
	delete(env.trainModes, id)
	delete(env.trainPolicies, id)
	return err
}

// Pause suspends ticking; Step becomes a no-op until Resume.
func (env *Environment) Pause() { env.paused = true }

// Resume re-enables ticking after Pause.
func (env *Environment) Resume() { env.paused = false }

// Paused reports whether the environment is paused.
func (env *Environment) Paused() bool { return env.paused }

// Reset returns the environment to tick zero with no trains. The topology
// and configuration are retained.
func (env *Environment) Reset() {
	env.clock = 0
	env.latest = nil
	env.paused = false
	env.metrics = NewMetrics()
	env.tracer = trace.New(env.tracer.Level)
	env.ctrl = NewTrainController(env.topo, env.metrics, env.tracer)
	env.commands = NewCommandChannel()
	env.trainModes = make(map[TrainID]Mode)
	env.trainPolicies = make(map[TrainID]Policy)
}

// LatestSnapshot returns the most recently published snapshot, or nil before
// the first tick.
func (env *Environment) LatestSnapshot() *Snapshot { return env.latest }

// Step advances the simulation by exactly one tick and publishes the
// resulting snapshot. Actions for all trains are computed against the state
// at the tick start, then applied in ascending train id order — a barrier
// between the compute and apply phases, so intra-tick movements never leak
// into other trains' decisions. A paused environment does not advance.
func (env *Environment) Step() *Snapshot {
	if env.paused {
		return env.latest
	}
	tick := env.clock
	pre := env.ctrl.Snapshot(tick)
	commands := env.commands.Drain(tick)

	// Compute phase: one action per live train, from pre-tick state.
	ids := env.ctrl.TrainIDs()
	actions := make(map[TrainID]Action, len(ids))
	for _, id := range ids {
		actions[id] = env.actionFor(id, pre, commands)
	}

	// Apply phase: deterministic id order. A fault in one train's
	// advancement halts that train and the tick continues for the rest.
	for _, id := range ids {
		env.applyAction(id, actions[id], tick)
	}

	env.clock++
	env.metrics.TicksExecuted++
	snap := env.ctrl.Snapshot(env.clock)
	env.latest = snap
	if env.onSnapshot != nil {
		env.onSnapshot(snap)
	}
	return snap
}

// applyAction advances one train, containing any panic from policy or
// controller internals as a halt instead of aborting the tick.
func (env *Environment) applyAction(id TrainID, action Action, tick int64) {
	defer func() {
		if r := recover(); r != nil {
			env.metrics.AdvanceFaults++
			env.ctrl.Halt(id)
			logrus.Errorf("[tick %07d] train %d advancement fault (halted): %v", tick, id, r)
		}
	}()
	if _, err := env.ctrl.Advance(id, action, env.dt, tick); err != nil {
		env.metrics.AdvanceFaults++
		env.ctrl.Halt(id)
		logrus.Errorf("[tick %07d] train %d advancement error (halted): %v", tick, id, err)
	}
}

// actionFor resolves the single action source for one train this tick. A
// panicking policy is contained the same way as an advancement fault: the
// train halts with a Hold action and the tick continues for the rest.
func (env *Environment) actionFor(id TrainID, pre *Snapshot, commands map[TrainID]Action) (action Action) {
	defer func() {
		if r := recover(); r != nil {
			env.metrics.AdvanceFaults++
			env.ctrl.Halt(id)
			logrus.Errorf("[tick %07d] train %d policy fault (halted): %v", pre.Tick, id, r)
			action = Hold()
		}
	}()
	mode := env.trainModes[id]
	if mode == "" {
		mode = env.defaultMode
	}
	if mode == ModeDelegated {
		if action, ok := commands[id]; ok {
			return action
		}
		// No submitted command for this tick: hold for this tick only.
		return Hold()
	}
	policy := env.trainPolicies[id]
	if policy == nil {
		policy = env.defaultPolicy
	}
	view, ok := pre.TrainByID(id)
	if !ok {
		// Spawned after the pre-tick snapshot; act next tick.
		return Hold()
	}
	return policy.Decide(view, env.topo, pre)
}

// Run executes up to ticks steps, stopping early only when ctx is cancelled.
// Cancellation is honored between ticks; a tick always completes once begun.
func (env *Environment) Run(ctx context.Context, ticks int64) (*Snapshot, error) {
	for i := int64(0); i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			logrus.Infof("[tick %07d] run cancelled: %v", env.clock, err)
			return env.latest, err
		}
		env.Step()
		logrus.Debugf("[tick %07d] advanced %d trains", env.clock, env.ctrl.NumTrains())
	}
	logrus.Infof("[tick %07d] simulation ended", env.clock)
	return env.latest, nil
}
