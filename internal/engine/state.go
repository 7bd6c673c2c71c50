// Package engine executes one conversational turn: it owns the mutable turn
// state, the FIFO task plan, the capability registry, the dispatcher drain
// loop, and the orchestrator that ties classification, history population,
// background maintenance, and dispatch together.
package engine

import (
	"errors"

	"taedam/internal/envelope"
)

// Task is one unit of planned work. Immutable once enqueued; a handler that
// needs to run again appends a fresh Task.
type Task struct {
	Name string
	Args map[string]any
}

// Well-known scratch keys. Handlers own keys namespaced by their capability
// name or one of these documented contract slots; they must not overwrite
// another handler's keys.
const (
	// ScratchRoute records the classified intent for the turn.
	ScratchRoute = "route"
	// ScratchErrors accumulates non-fatal routing errors ([]string).
	ScratchErrors = "errors"
	// ScratchExpertAnswer carries the medical handler's raw expert text to
	// the wrap step.
	ScratchExpertAnswer = "expert_answer"
	// ScratchCitations carries the evidence citations for the expert answer.
	ScratchCitations = "citations"
	// ScratchHasEvidence reports whether retrieval produced any passages.
	ScratchHasEvidence = "has_evidence"
	// ScratchHistory holds the *history.Block populated before dispatch.
	ScratchHistory = "history_block"
	// ScratchDate holds the turn's resolved logical date (YYYY-MM-DD).
	ScratchDate = "logical_date"
	// ScratchBackground marks that maintenance jobs were already scheduled
	// this turn.
	ScratchBackground = "background_triggered"
)

// ErrFinalAlreadySet is returned when a second handler tries to terminate an
// already-terminated turn.
var ErrFinalAlreadySet = errors.New("turn already has a terminal response")

// TurnState is the per-turn mutable state. It is owned by a single goroutine
// for the duration of the turn and discarded afterwards.
type TurnState struct {
	SessionID string
	Input     envelope.Input
	Plan      []Task
	Scratch   map[string]any
	Final     *envelope.Output
}

// NewTurnState builds the state for one incoming envelope.
func NewTurnState(input envelope.Input) *TurnState {
	return &TurnState{
		SessionID: input.SessionID,
		Input:     input,
		Scratch:   make(map[string]any),
	}
}

// PopTask removes and returns the head of the plan.
func (s *TurnState) PopTask() (Task, bool) {
	if len(s.Plan) == 0 {
		return Task{}, false
	}
	head := s.Plan[0]
	s.Plan = s.Plan[1:]
	return head, true
}

// AppendTask enqueues a task at the tail of the plan.
func (s *TurnState) AppendTask(t Task) {
	s.Plan = append(s.Plan, t)
}

// SetFinal records the terminal response. At most one handler per turn may
// terminate it.
func (s *TurnState) SetFinal(out *envelope.Output) error {
	if s.Final != nil {
		return ErrFinalAlreadySet
	}
	s.Final = out
	return nil
}

// RecordError appends a non-fatal error annotation to the errors slot.
func (s *TurnState) RecordError(msg string) {
	existing, _ := s.Scratch[ScratchErrors].([]string)
	s.Scratch[ScratchErrors] = append(existing, msg)
}

// Errors returns the accumulated non-fatal error annotations.
func (s *TurnState) Errors() []string {
	errs, _ := s.Scratch[ScratchErrors].([]string)
	return errs
}

// Text returns the user text of the turn.
func (s *TurnState) Text() string {
	return s.Input.Payload.Text
}
