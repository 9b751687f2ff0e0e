package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandChannel_SubmitAndDrain(t *testing.T) {
	ch := NewCommandChannel()

	require.NoError(t, ch.Submit(1, Proceed("fwd"), 0))
	require.NoError(t, ch.Submit(2, Dwell(3), 0))
	require.NoError(t, ch.Submit(1, Hold(), 1))

	batch := ch.Drain(0)
	require.Len(t, batch, 2)
	assert.Equal(t, ActionProceed, batch[1].Kind)
	assert.Equal(t, ActionDwell, batch[2].Kind)

	batch = ch.Drain(1)
	require.Len(t, batch, 1)
	assert.Equal(t, ActionHold, batch[1].Kind)
}

func TestCommandChannel_LastWriteWinsPerSlot(t *testing.T) {
	ch := NewCommandChannel()

	require.NoError(t, ch.Submit(1, Hold(), 5))
	require.NoError(t, ch.Submit(1, Accelerate(2.5), 5))

	batch := ch.Drain(5)
	require.Len(t, batch, 1)
	assert.Equal(t, ActionAccelerate, batch[1].Kind)
	assert.Equal(t, 2.5, batch[1].Delta)
}

func TestCommandChannel_RevisionIsPerTrain(t *testing.T) {
	ch := NewCommandChannel()

	require.NoError(t, ch.Submit(1, Hold(), 0))
	require.NoError(t, ch.Submit(2, Proceed(""), 0))
	require.NoError(t, ch.Submit(1, Dwell(4), 0))

	batch := ch.Drain(0)
	assert.Equal(t, ActionDwell, batch[1].Kind)
	assert.Equal(t, ActionProceed, batch[2].Kind, "train 2's command is untouched by train 1's revision")
}

func TestCommandChannel_DrainedTickRejected(t *testing.T) {
	ch := NewCommandChannel()
	ch.Drain(3)

	err := ch.Submit(1, Hold(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already drained")

	err = ch.Submit(1, Hold(), 0)
	require.Error(t, err, "any tick at or below the drain point is late")

	assert.NoError(t, ch.Submit(1, Hold(), 4))
}

func TestCommandChannel_WindowBoundsFutureSubmissions(t *testing.T) {
	ch := NewCommandChannel()
	ch.Window = 4

	// drained starts at -1: ticks 0..4 are acceptable.
	assert.NoError(t, ch.Submit(1, Hold(), 4))
	err := ch.Submit(1, Hold(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acceptance window")

	// Draining advances the window.
	ch.Drain(0)
	assert.NoError(t, ch.Submit(1, Hold(), 5))
}

func TestCommandChannel_DefaultWindow(t *testing.T) {
	ch := NewCommandChannel()

	assert.NoError(t, ch.Submit(1, Hold(), DefaultCommandWindow))
	assert.Error(t, ch.Submit(1, Hold(), DefaultCommandWindow+1))
}

func TestCommandChannel_DrainEmptyTickIsNil(t *testing.T) {
	ch := NewCommandChannel()

	assert.Nil(t, ch.Drain(0))

	// The drained slot is gone; a second drain of the same tick is empty too.
	require.NoError(t, ch.Submit(1, Hold(), 1))
	assert.Len(t, ch.Drain(1), 1)
	assert.Nil(t, ch.Drain(1))
}
