package pipeline

import "time"

// State is the orchestrator's processing state.
type State string

const (
	StateIdle         State = "IDLE"
	StateCameraActive State = "CAMERA_ACTIVE"
	StateProcessing   State = "PROCESSING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
)

// States lists every state in lifecycle order.
var States = []State{StateIdle, StateCameraActive, StateProcessing, StateCompleted, StateFailed}

// Transition is one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error // set when To is StateFailed
}

// Observer is called after each transition, outside the orchestrator lock.
type Observer func(Transition)
