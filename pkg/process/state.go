package process

import (
	"errors"
)

// State transition errors.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrProcessNotFound   = errors.New("process not found")
)

// ThreadState represents the state of a kernel thread.
type ThreadState string

const (
	// StateLoading indicates the thread is building its process image.
	StateLoading ThreadState = "loading"
	// StateRunning indicates the thread is executing user or kernel code.
	StateRunning ThreadState = "running"
	// StateBlocked indicates the thread is waiting on a child or a load.
	StateBlocked ThreadState = "blocked"
	// StateDying indicates the thread is tearing its process down.
	StateDying ThreadState = "dying"
	// StateDead indicates the thread has finished.
	StateDead ThreadState = "dead"
)

// StateTransition represents a valid state transition.
type StateTransition struct {
	From ThreadState
	To   ThreadState
}

// ValidTransitions defines all valid state transitions.
var ValidTransitions = []StateTransition{
	// Image loaded: Loading -> Running
	{From: StateLoading, To: StateRunning},
	// Load failed: Loading -> Dead
	{From: StateLoading, To: StateDead},
	// wait or exec: Running -> Blocked
	{From: StateRunning, To: StateBlocked},
	// Woken: Blocked -> Running
	{From: StateBlocked, To: StateRunning},
	// exit or fault: Running -> Dying
	{From: StateRunning, To: StateDying},
	// Halted while blocked: Blocked -> Dead
	{From: StateBlocked, To: StateDead},
	// Teardown finished: Dying -> Dead
	{From: StateDying, To: StateDead},
	// Thread ended without teardown: Running -> Dead
	{From: StateRunning, To: StateDead},
}

// IsValidTransition checks if a state transition is valid.
func IsValidTransition(from, to ThreadState) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// State returns the thread's current state.
func (t *Thread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// TransitionTo attempts to move the thread to a new state.
func (t *Thread) TransitionTo(to ThreadState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !IsValidTransition(t.state, to) {
		return ErrInvalidTransition
	}
	t.state = to
	return nil
}

// IsAlive returns true if the thread has not finished.
func (t *Thread) IsAlive() bool {
	return t.State() != StateDead
}
