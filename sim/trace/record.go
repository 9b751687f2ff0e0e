// Package trace provides decision-trace recording for offline analysis of a
// simulation run. It stores pure data types and has no dependency back into
// the sim package.
package trace

// RouteRecord captures a single switch routing decision.
type RouteRecord struct {
	Tick     int64
	Train    int
	Node     int    // switch node handle
	Hint     string // requested direction ("" = default route)
	Chosen   int    // edge handle selected
	Fallback bool   // true when the hint matched nothing and the default route was used
}

// HaltRecord captures a train being blocked by capacity.
type HaltRecord struct {
	Tick   int64
	Train  int
	Wanted int    // edge handle the train attempted to enter
	Reason string
}

// DwellRecord captures a platform dwell beginning.
type DwellRecord struct {
	Tick     int64
	Train    int
	Node     int // platform node handle
	Duration int // dwell length in ticks
}
