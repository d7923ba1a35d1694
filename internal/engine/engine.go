// Package engine walks a lesson script and gates progress on task
// completion.
package engine

import (
	"github.com/rahul/storylab/internal/scenario"
)

// Phase describes where the learner is within the current step.
type Phase string

const (
	PhaseNarrating      Phase = "narrating"
	PhaseAwaitingTask   Phase = "awaiting_task"
	PhaseReadyToAdvance Phase = "ready_to_advance"
	PhaseTerminal       Phase = "terminal"
)

// Engine owns the current step index and the task-satisfied flag. It is
// not safe for concurrent use; callers serialize access through their
// event loop.
type Engine struct {
	script        scenario.Script
	index         int
	taskSatisfied bool
}

// New starts an engine at the first step of script.
func New(script scenario.Script) (*Engine, error) {
	if script.Len() == 0 {
		return nil, scenario.ErrEmptyScript
	}
	return &Engine{script: script}, nil
}

// ReportTaskSatisfied marks the current step's task as done. Repeated
// calls have no further effect and never move the index.
func (e *Engine) ReportTaskSatisfied() {
	e.taskSatisfied = true
}

// CanAdvance reports whether Advance would move to the next step.
func (e *Engine) CanAdvance() bool {
	if e.index >= e.script.Len()-1 {
		return false
	}
	return e.gateOpen()
}

// Advance moves to the next step when permitted and reports whether it
// did.
func (e *Engine) Advance() bool {
	if !e.CanAdvance() {
		return false
	}
	e.index++
	e.taskSatisfied = false
	return true
}

// CurrentStep returns the step at the current index.
func (e *Engine) CurrentStep() scenario.Step {
	return e.script.Step(e.index)
}

// Index returns the current step index.
func (e *Engine) Index() int { return e.index }

// Len returns the number of steps in the script.
func (e *Engine) Len() int { return e.script.Len() }

// TaskSatisfied reports whether the current step's task has been
// reported done since the last index change.
func (e *Engine) TaskSatisfied() bool { return e.taskSatisfied }

// Terminal reports whether the engine sits on the final step.
func (e *Engine) Terminal() bool { return e.index == e.script.Len()-1 }

// Script returns the script being played.
func (e *Engine) Script() scenario.Script { return e.script }

// Phase derives the per-step phase given whether narration is still
// being revealed.
func (e *Engine) Phase(revealing bool) Phase {
	switch {
	case e.Terminal():
		return PhaseTerminal
	case revealing:
		return PhaseNarrating
	case !e.gateOpen():
		return PhaseAwaitingTask
	default:
		return PhaseReadyToAdvance
	}
}

func (e *Engine) gateOpen() bool {
	return e.CurrentStep().Kind != scenario.KindInteractiveTask || e.taskSatisfied
}
