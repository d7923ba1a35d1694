// Package render maps a step onto the one presentation its kind calls
// for and mounts task collaborators for interactive steps.
package render

import (
	"context"
	"fmt"

	"github.com/rahul/storylab/internal/labs"
	"github.com/rahul/storylab/internal/scenario"
)

// Mounter builds task collaborators by lab name.
type Mounter interface {
	Mount(lab string, env labs.Env, config map[string]any) (labs.Task, error)
}

// View is a presentation of one step's payload.
type View interface {
	Render(width int) string
}

// Mounted is the presentation currently shown for a step.
type Mounted struct {
	StepID int
	Kind   scenario.Kind
	View   View
	// Task is set only for interactive steps whose task mounted.
	Task labs.Task
	// Err is a *scenario.ConfigurationError when an interactive step
	// could not mount its task.
	Err error
}

// Renderer keeps at most one mounted step. Mounting a step with a
// different ID destroys the previous mount, so per-step task state never
// carries over.
type Renderer struct {
	labs    Mounter
	current *Mounted
	cancel  context.CancelFunc
}

func New(m Mounter) *Renderer {
	return &Renderer{labs: m}
}

// Mount returns the presentation for step. For interactive steps the
// task receives onTaskSatisfied and notify unchanged; the renderer does
// not deduplicate completion calls. Calling Mount again with the same
// step ID returns the existing mount.
func (r *Renderer) Mount(ctx context.Context, step scenario.Step, onTaskSatisfied func(), notify func(string)) *Mounted {
	if r.current != nil && r.current.StepID == step.ID {
		return r.current
	}
	r.Unmount()

	m := &Mounted{StepID: step.ID, Kind: step.Kind}
	switch step.Kind {
	case scenario.KindImage:
		p, _ := step.Payload.(scenario.ImagePayload)
		m.View = imageView{p}
	case scenario.KindCodeExplain:
		p, _ := step.Payload.(scenario.CodePayload)
		m.View = codeView{p}
	case scenario.KindTechSummary:
		p, _ := step.Payload.(scenario.SummaryPayload)
		m.View = summaryView{p}
	case scenario.KindVictory:
		p, _ := step.Payload.(scenario.VictoryPayload)
		m.View = victoryView{p}
	case scenario.KindInteractiveTask:
		r.mountTask(ctx, m, step, onTaskSatisfied, notify)
	default:
		m.Err = &scenario.ConfigurationError{StepID: step.ID, Reason: fmt.Sprintf("cannot render %s", step.Kind)}
		m.View = placeholderView{m.Err}
	}

	r.current = m
	return m
}

func (r *Renderer) mountTask(ctx context.Context, m *Mounted, step scenario.Step, onTaskSatisfied func(), notify func(string)) {
	cfg, err := step.Task()
	if err == nil && r.labs == nil {
		err = &scenario.ConfigurationError{StepID: step.ID, Reason: "no labs available"}
	}
	if err != nil {
		m.Err = err
		m.View = placeholderView{err}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	taskCtx, cancel := context.WithCancel(ctx)
	if notify == nil {
		notify = func(string) {}
	}
	task, err := r.labs.Mount(cfg.Lab, labs.Env{Ctx: taskCtx, Done: onTaskSatisfied, Notify: notify}, cfg.Config)
	if err != nil {
		cancel()
		m.Err = &scenario.ConfigurationError{StepID: step.ID, Reason: err.Error()}
		m.View = placeholderView{m.Err}
		return
	}

	r.cancel = cancel
	m.Task = task
	m.View = taskView{task}
}

// Current returns the mounted step, or nil.
func (r *Renderer) Current() *Mounted {
	return r.current
}

// Unmount destroys the current mount.
func (r *Renderer) Unmount() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.current != nil && r.current.Task != nil {
		r.current.Task.Close()
	}
	r.current = nil
}
