// Package mission owns the robot's authoritative IDLE/RUNNING/PAUSED state
// and the inspection loop it gates. The backend only ever learns this state
// through what the robot uploads; no transition is driven by REST.
package mission

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Mission states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StatePaused  = "paused"
)

// Mission events.
const (
	// EventStart begins or resumes a mission.
	EventStart = "event_start"
	// EventPause requests a stop at the next safe checkpoint.
	EventPause = "event_pause"
	// EventFinish returns to idle after a completed or abandoned cycle.
	EventFinish = "event_finish"
)

// Machine is the robot-side mission state machine. Power on/off is a
// separate signal and never drives these transitions.
type Machine struct {
	*fsm.FSM
}

func NewMachine() *Machine {
	return &Machine{
		FSM: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: EventStart, Src: []string{StateIdle, StatePaused}, Dst: StateRunning},
				{Name: EventPause, Src: []string{StateRunning}, Dst: StatePaused},
				{Name: EventFinish, Src: []string{StateRunning, StatePaused}, Dst: StateIdle},
			},
			fsm.Callbacks{},
		),
	}
}

// Start transitions to running. A duplicate start while already running is a
// no-op and reports started=false, so delivery duplicates never restart an
// active loop.
func (m *Machine) Start(ctx context.Context) (started bool, err error) {
	if m.Current() == StateRunning {
		return false, nil
	}
	if err := m.Event(ctx, EventStart); err != nil {
		return false, ignoreNoTransition(err)
	}
	return true, nil
}

// Pause transitions to paused. Duplicate pauses are no-ops.
func (m *Machine) Pause(ctx context.Context) error {
	if m.Current() != StateRunning {
		return nil
	}
	return ignoreNoTransition(m.Event(ctx, EventPause))
}

// Finish returns to idle from any active state.
func (m *Machine) Finish(ctx context.Context) error {
	if m.Current() == StateIdle {
		return nil
	}
	return ignoreNoTransition(m.Event(ctx, EventFinish))
}

// Running reports whether the mission loop should keep walking nodes.
func (m *Machine) Running() bool {
	return m.Current() == StateRunning
}

func ignoreNoTransition(err error) error {
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
