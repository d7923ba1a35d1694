package scenario

import (
	"errors"
	"fmt"
)

// Script is the ordered, immutable sequence of steps for one lesson.
// The zero value is an empty script.
type Script struct {
	ID      string
	Title   string
	Chapter string
	steps   []Step
}

// NewScript builds a script and checks its structural invariants: at
// least one step, strictly increasing step IDs, and exactly one victory
// step placed last. Task configuration is not checked here; see Lint.
func NewScript(id, title, chapter string, steps []Step) (Script, error) {
	if len(steps) == 0 {
		return Script{}, ErrEmptyScript
	}

	var errs []error
	victories := 0
	for i, s := range steps {
		if i > 0 && s.ID <= steps[i-1].ID {
			errs = append(errs, fmt.Errorf("step %d: id must be greater than %d", s.ID, steps[i-1].ID))
		}
		if _, ok := kindNames[s.Kind]; !ok {
			errs = append(errs, fmt.Errorf("step %d: %s", s.ID, s.Kind))
		}
		if s.Kind == KindVictory {
			victories++
		}
	}
	if victories != 1 {
		errs = append(errs, fmt.Errorf("script must have exactly one victory step, found %d", victories))
	}
	if last := steps[len(steps)-1]; last.Kind != KindVictory {
		errs = append(errs, fmt.Errorf("last step %d is %s, want %s", last.ID, last.Kind, KindVictory))
	}
	if len(errs) > 0 {
		return Script{}, &ValidationError{ScriptID: id, Err: errors.Join(errs...)}
	}

	owned := make([]Step, len(steps))
	copy(owned, steps)
	return Script{ID: id, Title: title, Chapter: chapter, steps: owned}, nil
}

// Len returns the number of steps.
func (s Script) Len() int { return len(s.steps) }

// Step returns the step at index i.
func (s Script) Step(i int) Step { return s.steps[i] }

// Steps returns a copy of the steps.
func (s Script) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// ValidationError wraps every problem found in one script.
type ValidationError struct {
	ScriptID string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.ScriptID == "" {
		return fmt.Sprintf("scenario: invalid script: %v", e.Err)
	}
	return fmt.Sprintf("scenario: invalid script %q: %v", e.ScriptID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Lint reports every interactive step that could never be completed:
// steps without a task configuration and, when check is non-nil, steps
// whose lab and config check rejects. The returned error wraps one
// *ConfigurationError per finding.
func Lint(s Script, check func(lab string, config map[string]any) error) error {
	var errs []error
	for _, step := range s.steps {
		if step.Kind != KindInteractiveTask {
			continue
		}
		task, err := step.Task()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if check == nil {
			continue
		}
		if err := check(task.Lab, task.Config); err != nil {
			errs = append(errs, &ConfigurationError{StepID: step.ID, Reason: err.Error()})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{ScriptID: s.ID, Err: errors.Join(errs...)}
}
