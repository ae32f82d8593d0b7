package workflow

import (
	"fmt"
	"slices"
)

// State is a rest or busy state of the controller.
type State string

const (
	Idle      State = "idle"
	Recording State = "recording"
	Preview   State = "preview"
	Analyzing State = "analyzing"
	Success   State = "success"
	Error     State = "error"
)

// Action is an entry point of the controller.
type Action string

const (
	ActionStartCapture      Action = "start_capture"
	ActionStopCapture       Action = "stop_capture"
	ActionUpload            Action = "upload"
	ActionDiscard           Action = "discard"
	ActionSetNotes          Action = "set_notes"
	ActionAnalyze           Action = "analyze"
	ActionDismiss           Action = "dismiss"
	ActionSelectFromHistory Action = "select_from_history"
	ActionStartNew          Action = "start_new"
	ActionDeleteFromHistory Action = "delete_from_history"
	ActionCommitEdit        Action = "commit_edit"
)

// AllActions lists every action in a stable order.
var AllActions = []Action{
	ActionStartCapture, ActionStopCapture, ActionUpload, ActionDiscard,
	ActionSetNotes, ActionAnalyze, ActionDismiss, ActionSelectFromHistory,
	ActionStartNew, ActionDeleteFromHistory, ActionCommitEdit,
}

// AllStates lists every state.
var AllStates = []State{Idle, Recording, Preview, Analyzing, Success, Error}

// allowed is the transition table. Deleting a history entry is possible in
// every state. Nothing that starts a new capture or analysis is exposed
// while Analyzing.
var allowed = map[State][]Action{
	Idle:      {ActionStartCapture, ActionUpload, ActionSelectFromHistory, ActionDeleteFromHistory},
	Recording: {ActionStopCapture, ActionDeleteFromHistory},
	Preview:   {ActionDiscard, ActionSetNotes, ActionAnalyze, ActionDeleteFromHistory},
	Analyzing: {ActionDeleteFromHistory},
	Success:   {ActionSelectFromHistory, ActionStartNew, ActionCommitEdit, ActionDeleteFromHistory},
	Error:     {ActionDismiss, ActionSetNotes, ActionDeleteFromHistory},
}

// Allows reports whether a is an entry point of s.
func (s State) Allows(a Action) bool {
	return slices.Contains(allowed[s], a)
}

// Actions returns the entry points of s.
func (s State) Actions() []Action {
	return slices.Clone(allowed[s])
}

// TransitionError is returned when an action is not allowed in the current state.
type TransitionError struct {
	State  State
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.State)
}
