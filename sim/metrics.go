// Tracks run-wide counters for final reporting.

package sim

import "fmt"

// Metrics aggregates statistics about the simulation for final reporting.
// Useful for evaluating schedule quality and debugging behavior over time.
type Metrics struct {
	TicksExecuted      int64 // Number of completed ticks
	Spawns             int   // Trains created
	Despawns           int   // Trains removed
	SegmentTransitions int   // Edge-to-edge or node-to-edge entries
	DwellTicks         int   // Total ticks spent dwelling across all trains
	HaltedTicks        int   // Total ticks spent halted across all trains
	RouteFallbacks     int   // Switch routings that fell back to the default route
	AdvanceFaults      int   // Per-train advancement faults recovered as halts
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Ticks executed       : %d\n", m.TicksExecuted)
	fmt.Printf("Trains spawned       : %d\n", m.Spawns)
	fmt.Printf("Trains despawned     : %d\n", m.Despawns)
	fmt.Printf("Segment transitions  : %d\n", m.SegmentTransitions)
	fmt.Printf("Dwell ticks          : %d\n", m.DwellTicks)
	fmt.Printf("Halted ticks         : %d\n", m.HaltedTicks)
	fmt.Printf("Route fallbacks      : %d\n", m.RouteFallbacks)
	fmt.Printf("Advance faults       : %d\n", m.AdvanceFaults)
	if m.TicksExecuted > 0 && m.SegmentTransitions > 0 {
		fmt.Printf("Transitions per tick : %.3f\n", float64(m.SegmentTransitions)/float64(m.TicksExecuted))
	}
}
