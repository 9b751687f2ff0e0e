// Error taxonomy for the simulation. Only BuildError and PolicyConfigError
// are fatal to a run; everything else is reported and recovered.

package sim

import "fmt"

// BuildError reports a malformed or disconnected topology. Fatal at startup.
type BuildError struct {
	Detail string
}

func (e *BuildError) Error() string {
	return "topology build: " + e.Detail
}

// NoRouteError reports a switch with no outgoing edge matching the requested
// travel direction. Recovered by falling back to the default priority route.
type NoRouteError struct {
	Node      NodeID
	Direction string
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route from node %d for direction %q", e.Node, e.Direction)
}

// UnknownTrainError reports a command or despawn referencing a train id that
// does not exist. Reported to the caller; other trains are unaffected.
type UnknownTrainError struct {
	Train TrainID
}

func (e *UnknownTrainError) Error() string {
	return fmt.Sprintf("unknown train %d", e.Train)
}

// PolicyConfigError reports a train left without an assigned policy in
// self-rolling mode. Fatal at startup, never deferred to runtime.
type PolicyConfigError struct {
	Detail string
}

func (e *PolicyConfigError) Error() string {
	return "policy configuration: " + e.Detail
}
