package scheduler

import (
	"fmt"
	"sync"
)

// State is the coarse lifecycle position of a request.
type State int

const (
	StateQueued State = iota
	StateInProgress
	StateRetrying
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateInProgress:
		return "in-progress"
	case StateRetrying:
		return "retrying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is what a Handle observes. Progress is only meaningful while
// State is StateInProgress.
type Status struct {
	State    State
	Progress Progress
}

func (s Status) IsTerminal() bool {
	return s.State == StateCompleted || s.State == StateFailed || s.State == StateCancelled
}

func (s Status) String() string {
	if s.State == StateInProgress {
		return fmt.Sprintf("%s (%s)", s.State, s.Progress)
	}
	return s.State.String()
}

func inProgress(p Progress) Status {
	return Status{State: StateInProgress, Progress: p}
}

// statusCell holds only the latest Status. Every publish closes the current
// notify channel so waiters wake up; once a terminal status is stored the
// cell is frozen.
type statusCell struct {
	mu      sync.Mutex
	status  Status
	version uint64
	notify  chan struct{}
}

func newStatusCell() *statusCell {
	return &statusCell{
		status: Status{State: StateQueued},
		notify: make(chan struct{}),
	}
}

func (c *statusCell) publish(s Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.IsTerminal() {
		return false
	}
	c.status = s
	c.version++
	close(c.notify)
	c.notify = make(chan struct{})
	return true
}

func (c *statusCell) snapshot() (Status, uint64, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.version, c.notify
}
