// Scenario loading: a YAML file describing the topology, the initial trains,
// the run mode, and an optional scripted command sequence for delegated runs.
// Loaded once at startup; malformed input is a non-recoverable error.

package sim

import (
	"bytes"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/metro-sim/metro-sim/sim/trace"
)

// TrainSpec describes one train to spawn before the run starts.
type TrainSpec struct {
	Node      string `yaml:"node"`
	Direction string `yaml:"direction,omitempty"`
	Policy    string `yaml:"policy,omitempty"` // self-rolling trains; empty = scenario default
	Mode      string `yaml:"mode,omitempty"`   // per-train override of the scenario mode
}

// CommandSpec is one scripted delegated command, replayed into the command
// channel as the run reaches the preceding tick.
type CommandSpec struct {
	Tick      int64   `yaml:"tick"`
	Train     int     `yaml:"train"` // 1-based spawn order, matching assigned TrainIDs
	Action    string  `yaml:"action"`
	Delta     float64 `yaml:"delta,omitempty"`
	Direction string  `yaml:"direction,omitempty"`
	Dwell     int     `yaml:"dwell,omitempty"`
}

// ScenarioSpec is the top-level run configuration.
// Loaded from YAML via LoadScenario(path).
type ScenarioSpec struct {
	Name     string        `yaml:"name"`
	Seed     int64         `yaml:"seed"`
	Ticks    int64         `yaml:"ticks"`
	DT       float64       `yaml:"dt,omitempty"`
	Mode     string        `yaml:"mode"` // "self-rolling" or "delegated"
	Policy   string        `yaml:"policy,omitempty"`
	Topology TopologySpec  `yaml:"topology"`
	Trains   []TrainSpec   `yaml:"trains"`
	Commands []CommandSpec `yaml:"commands,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file. Unknown fields are
// rejected so typos fail loudly at startup.
func LoadScenario(path string) (*ScenarioSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var spec ScenarioSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	logrus.Infof("loaded scenario %q: %d nodes, %d edges, %d trains",
		spec.Name, len(spec.Topology.Nodes), len(spec.Topology.Edges), len(spec.Trains))
	return &spec, nil
}

// Validate checks scenario-level consistency. Topology validity itself is
// checked by BuildTopology.
func (s *ScenarioSpec) Validate() error {
	switch Mode(s.Mode) {
	case ModeSelfRolling, ModeDelegated, "":
	default:
		return fmt.Errorf("scenario %q: unknown mode %q", s.Name, s.Mode)
	}
	if s.Ticks < 0 {
		return fmt.Errorf("scenario %q: negative tick count %d", s.Name, s.Ticks)
	}
	if s.DT < 0 {
		return fmt.Errorf("scenario %q: negative dt %v", s.Name, s.DT)
	}
	nodeNames := lo.Map(s.Topology.Nodes, func(n NodeSpec, _ int) string { return n.Name })
	for i, tr := range s.Trains {
		if !lo.Contains(nodeNames, tr.Node) {
			return fmt.Errorf("scenario %q: train %d spawns at unknown node %q", s.Name, i+1, tr.Node)
		}
	}
	for _, c := range s.Commands {
		if c.Train < 1 || c.Train > len(s.Trains) {
			return fmt.Errorf("scenario %q: command at tick %d targets unknown train %d", s.Name, c.Tick, c.Train)
		}
		if _, err := c.toAction(); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return nil
}

// toAction translates a scripted command into an Action.
func (c CommandSpec) toAction() (Action, error) {
	switch ActionKind(c.Action) {
	case ActionHold:
		return Hold(), nil
	case ActionAccelerate:
		return Accelerate(c.Delta), nil
	case ActionProceed:
		return Proceed(c.Direction), nil
	case ActionDwell:
		return Dwell(c.Dwell), nil
	default:
		return Action{}, fmt.Errorf("command at tick %d: unknown action %q", c.Tick, c.Action)
	}
}

// BuildEnvironment constructs a ready-to-run Environment from the scenario:
// topology built and frozen, trains spawned with their action sources bound,
// and scripted commands submitted to the command channel. Build and policy
// configuration failures are fatal, per the startup error contract.
func (s *ScenarioSpec) BuildEnvironment(traceLevel string) (*Environment, error) {
	topo, err := BuildTopology(s.Topology)
	if err != nil {
		return nil, err
	}
	if !trace.IsValidLevel(traceLevel) {
		return nil, fmt.Errorf("unknown trace level %q", traceLevel)
	}
	env := NewEnvironment(topo, EnvironmentConfig{
		DT:         s.DT,
		Mode:       Mode(s.Mode),
		Seed:       s.Seed,
		TraceLevel: trace.Level(traceLevel),
	})

	// Scripted commands may target any tick in the run.
	if s.Ticks > 0 {
		env.Commands().Window = s.Ticks
	}

	if s.Policy != "" {
		defaultPolicy, err := NewPolicy(s.Policy, env.RNG())
		if err != nil {
			return nil, err
		}
		env.SetDefaultPolicy(defaultPolicy)
	}

	for i, tr := range s.Trains {
		at, ok := topo.NodeByName(tr.Node)
		if !ok {
			return nil, fmt.Errorf("train %d: unknown spawn node %q", i+1, tr.Node)
		}
		var policy Policy
		if tr.Policy != "" {
			policy, err = NewPolicy(tr.Policy, env.RNG())
			if err != nil {
				return nil, err
			}
		}
		if _, err := env.AddTrain(at, tr.Direction, Mode(tr.Mode), policy); err != nil {
			return nil, fmt.Errorf("train %d: %w", i+1, err)
		}
	}

	for _, c := range s.Commands {
		action, err := c.toAction()
		if err != nil {
			return nil, err
		}
		if err := env.Commands().Submit(TrainID(c.Train), action, c.Tick); err != nil {
			return nil, fmt.Errorf("scripted command: %w", err)
		}
	}
	return env, nil
}
