// Control actions applied to trains each tick. An Action is produced by a
// Policy (self-rolling mode) or submitted through the CommandChannel
// (delegated mode) and consumed by TrainController.Advance.

package sim

import "fmt"

// ActionKind discriminates the control action variants.
type ActionKind string

const (
	// ActionAccelerate adjusts velocity by Delta, capped to the edge speed limit.
	ActionAccelerate ActionKind = "accelerate"
	// ActionHold leaves velocity and dwell state unchanged.
	ActionHold ActionKind = "hold"
	// ActionProceed departs a platform or selects the next segment at a
	// switch, optionally carrying a direction hint.
	ActionProceed ActionKind = "proceed"
	// ActionDwell requests a platform dwell for DwellTicks ticks.
	ActionDwell ActionKind = "dwell"
)

// Action is a single per-tick control decision for one train.
// Zero value is not valid; use the constructors.
type Action struct {
	Kind          ActionKind
	Delta         float64 // ActionAccelerate: velocity change per tick
	DirectionHint string  // ActionProceed: desired direction at a switch
	DwellTicks    int     // ActionDwell: requested dwell duration
}

// Hold returns the no-op action. It is the delegated-mode default for trains
// with no submitted command.
func Hold() Action {
	return Action{Kind: ActionHold}
}

// Accelerate returns an action changing velocity by delta.
func Accelerate(delta float64) Action {
	return Action{Kind: ActionAccelerate, Delta: delta}
}

// Proceed returns an action departing toward the next segment. An empty hint
// defers to the train's direction intent, then the default priority route.
func Proceed(hint string) Action {
	return Action{Kind: ActionProceed, DirectionHint: hint}
}

// Dwell returns an action dwelling at a platform for the given tick count.
// A duration of 0 uses the platform's default dwell.
func Dwell(ticks int) Action {
	return Action{Kind: ActionDwell, DwellTicks: ticks}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionAccelerate:
		return fmt.Sprintf("accelerate(%+.2f)", a.Delta)
	case ActionProceed:
		if a.DirectionHint != "" {
			return fmt.Sprintf("proceed(%s)", a.DirectionHint)
		}
		return "proceed"
	case ActionDwell:
		return fmt.Sprintf("dwell(%d)", a.DwellTicks)
	default:
		return string(a.Kind)
	}
}
