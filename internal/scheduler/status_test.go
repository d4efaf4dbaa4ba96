package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCellFreezesOnTerminal(t *testing.T) {
	c := newStatusCell()
	s, v, changed := c.snapshot()
	assert.Equal(t, StateQueued, s.State)
	assert.Zero(t, v)

	assert.True(t, c.publish(inProgress(NewProgress(10))))
	select {
	case <-changed:
	default:
		t.Fatal("waiters were not notified")
	}

	assert.True(t, c.publish(Status{State: StateCancelled}))
	assert.False(t, c.publish(Status{State: StateCompleted}))
	s, v, _ = c.snapshot()
	assert.Equal(t, StateCancelled, s.State)
	assert.EqualValues(t, 2, v)
}

func TestStatusTerminalStates(t *testing.T) {
	tests := []struct {
		state    State
		terminal bool
		name     string
	}{
		{StateQueued, false, "queued"},
		{StateInProgress, false, "in-progress"},
		{StateRetrying, false, "retrying"},
		{StateCompleted, true, "completed"},
		{StateFailed, true, "failed"},
		{StateCancelled, true, "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, Status{State: tt.state}.IsTerminal())
			assert.Equal(t, tt.name, tt.state.String())
		})
	}
}
