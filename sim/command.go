// CommandChannel is the delegated-mode action source: an external actor
// submits per-train commands for the current or a near-future tick, and the
// Environment drains exactly one batch per tick.

package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultCommandWindow is how many ticks ahead of the current drain point a
// submission may target.
const DefaultCommandWindow = 64

// CommandChannel buffers one action per (train, tick). Submitting a second
// command for the same slot overwrites the first: commands may be revised up
// to the tick boundary, so last write wins and is not an error.
//
// Not safe for concurrent use; external actors hand commands to the
// simulation goroutine before the tick boundary.
type CommandChannel struct {
	pending map[int64]map[TrainID]Action
	// drained is the highest tick already consumed; submissions at or below
	// it are rejected.
	drained int64
	// Window bounds how far into the future a submission may reach.
	// Zero means DefaultCommandWindow.
	Window int64
}

// NewCommandChannel creates an empty channel ready for tick 0.
func NewCommandChannel() *CommandChannel {
	return &CommandChannel{
		pending: make(map[int64]map[TrainID]Action),
		drained: -1,
	}
}

// Submit buffers an action for the given train and tick. Ticks already
// drained are rejected with an error (reported, never a crash), as are ticks
// beyond the acceptance window.
func (c *CommandChannel) Submit(id TrainID, action Action, tick int64) error {
	if tick <= c.drained {
		return fmt.Errorf("command for train %d targets tick %d, already drained (current drain point %d)", id, tick, c.drained)
	}
	window := c.Window
	if window == 0 {
		window = DefaultCommandWindow
	}
	if tick > c.drained+1+window {
		return fmt.Errorf("command for train %d targets tick %d, beyond acceptance window (max %d)", id, tick, c.drained+1+window)
	}
	slot, ok := c.pending[tick]
	if !ok {
		slot = make(map[TrainID]Action)
		c.pending[tick] = slot
	}
	if prev, exists := slot[id]; exists {
		logrus.Debugf("command for train %d at tick %d revised: %v -> %v", id, tick, prev, action)
	}
	slot[id] = action
	return nil
}

// Drain consumes and returns the buffered actions for a tick. Each tick may
// be drained once; trains absent from the result default to Hold. The
// returned map may be nil when no commands were submitted.
func (c *CommandChannel) Drain(tick int64) map[TrainID]Action {
	if tick > c.drained {
		c.drained = tick
	}
	slot := c.pending[tick]
	delete(c.pending, tick)
	return slot
}
