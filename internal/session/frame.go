package session

import (
	"github.com/rahul/storylab/internal/engine"
	"github.com/rahul/storylab/internal/scenario"
)

// Frame is everything a display needs to draw the current step.
type Frame struct {
	SessionID   string
	LessonTitle string
	Index       int
	Total       int
	StepID      int
	Kind        scenario.Kind
	Speaker     string
	// Narration is the revealed prefix of the step's narration.
	Narration string
	Revealing bool
	Body      string
	Feedback  string
	Phase     engine.Phase
	// CanAdvance drives the "Next" affordance; Terminal replaces it with
	// "Exit".
	CanAdvance   bool
	Terminal     bool
	AcceptsInput bool
	ConfigError  string
}

// Settled reports whether the frame will not change until the learner
// acts or a task reports back.
func (f Frame) Settled() bool {
	return !f.Revealing
}
