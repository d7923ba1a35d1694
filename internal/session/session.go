// Package session runs one play-through of a lesson.
//
// Everything that touches the engine, the revealer or the mounted task
// happens on the goroutine executing Run. Reveal ticks, learner actions
// and task callbacks all arrive as messages, so the loop needs no locks
// and two advances can never race.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/storylab/internal/engine"
	"github.com/rahul/storylab/internal/grading"
	"github.com/rahul/storylab/internal/observability"
	"github.com/rahul/storylab/internal/render"
	"github.com/rahul/storylab/internal/reveal"
	"github.com/rahul/storylab/internal/scenario"
)

// ActionKind is something the learner asked for.
type ActionKind int

const (
	ActionNext ActionKind = iota + 1
	ActionSkip
	ActionExit
	ActionInput
)

// Action is one learner request.
type Action struct {
	Kind ActionKind
	Text string
}

// Display presents frames to the learner.
type Display interface {
	Show(f Frame) error
}

// Recorder journals a play-through.
type Recorder interface {
	StartSession(ctx context.Context, sessionID, lessonID string) error
	RecordEvent(ctx context.Context, sessionID string, stepID int, kind, detail string) error
	FinishSession(ctx context.Context, sessionID string, completed bool) error
}

// Options tune a session. The zero value is usable.
type Options struct {
	RevealDelay time.Duration
	Clock       reveal.Clock
	// Width is the column budget for step bodies.
	Width    int
	Logger   *observability.Logger
	Recorder Recorder
	// OnExit is called once when the learner leaves the lesson.
	OnExit func(Result)
}

// Result describes how a play-through ended.
type Result struct {
	SessionID string
	LessonID  string
	Index     int
	Completed bool
	Aborted   bool
}

type taskSignal struct {
	stepID   int
	done     bool
	feedback string
}

// Session drives one lesson for one learner.
type Session struct {
	id      string
	script  scenario.Script
	engine  *engine.Engine
	rev     *reveal.Revealer
	ren     *render.Renderer
	display Display
	opts    Options

	ticks    chan reveal.Tick
	signals  chan taskSignal
	stopped  chan struct{}
	feedback string
}

// New prepares a session. It fails with scenario.ErrEmptyScript when the
// script has no steps.
func New(script scenario.Script, mounter render.Mounter, display Display, opts Options) (*Session, error) {
	eng, err := engine.New(script)
	if err != nil {
		return nil, err
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	ticks := make(chan reveal.Tick)
	return &Session{
		id:      uuid.NewString(),
		script:  script,
		engine:  eng,
		rev:     reveal.New(opts.Clock, opts.RevealDelay, ticks),
		ren:     render.New(mounter),
		display: display,
		opts:    opts,
		ticks:   ticks,
		signals: make(chan taskSignal, 64),
		stopped: make(chan struct{}),
	}, nil
}

// ID identifies the play-through in logs and the journal.
func (s *Session) ID() string { return s.id }

// Run plays the lesson until the learner exits, actions is closed or
// ctx is cancelled.
func (s *Session) Run(ctx context.Context, actions <-chan Action) (Result, error) {
	defer close(s.stopped)
	defer s.rev.Stop()
	defer s.ren.Unmount()

	s.opts.Logger.LogLesson(s.id, s.script.ID, true, false)
	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.StartSession(ctx, s.id, s.script.ID); err != nil {
			log.Printf("Error starting journal for session %s: %v", s.id, err)
		}
	}

	s.enterStep(ctx)
	if err := s.show(); err != nil {
		return s.finish(ctx, false), err
	}

	for {
		select {
		case <-ctx.Done():
			return s.finish(ctx, false), ctx.Err()

		case a, ok := <-actions:
			if !ok {
				return s.finish(ctx, false), nil
			}
			if exit, completed := s.handle(ctx, a); exit {
				return s.finish(ctx, completed), nil
			}

		case t := <-s.ticks:
			if !s.rev.Apply(t) {
				continue
			}

		case sig := <-s.signals:
			if !s.handleSignal(ctx, sig) {
				continue
			}
		}

		if err := s.show(); err != nil {
			return s.finish(ctx, false), err
		}
	}
}

func (s *Session) handle(ctx context.Context, a Action) (exit, completed bool) {
	step := s.engine.CurrentStep()
	switch a.Kind {
	case ActionSkip:
		s.rev.Complete()

	case ActionNext:
		if s.rev.Complete() {
			return false, false
		}
		if s.engine.Terminal() {
			return true, true
		}
		phase := s.engine.Phase(false)
		if !s.engine.Advance() {
			s.opts.Logger.LogAdvance(s.id, step.ID, false, string(phase))
			s.feedback = "Finish the task before moving on."
			return false, false
		}
		s.opts.Logger.LogAdvance(s.id, step.ID, true, string(phase))
		s.record(ctx, step.ID, "advance", "")
		s.enterStep(ctx)

	case ActionExit:
		return true, s.engine.Terminal()

	case ActionInput:
		m := s.ren.Current()
		if m == nil || m.Task == nil {
			s.feedback = "Nothing to answer here."
			return false, false
		}
		s.rev.Complete()
		m.Task.Handle(a.Text)
	}
	return false, false
}

// handleSignal applies a task callback and reports whether the frame
// changed. Callbacks from a previous step's task are dropped.
func (s *Session) handleSignal(ctx context.Context, sig taskSignal) bool {
	step := s.engine.CurrentStep()
	if sig.stepID != step.ID {
		return false
	}
	if sig.feedback != "" {
		s.feedback = sig.feedback
	}
	if sig.done && !s.engine.TaskSatisfied() {
		s.engine.ReportTaskSatisfied()
		s.opts.Logger.LogTask(s.id, step.ID, observability.EventTypeTaskSatisfied, "")
		s.record(ctx, step.ID, "task_satisfied", "")
	}
	return true
}

func (s *Session) enterStep(ctx context.Context) {
	step := s.engine.CurrentStep()
	s.feedback = ""

	if s.rev.Start(step.Narration) {
		s.opts.Logger.LogTask(s.id, step.ID, observability.EventTypeRevealCancelled, "")
	}

	taskCtx := grading.WithStep(ctx, s.id, step.ID)
	m := s.ren.Mount(taskCtx, step, s.taskDone(step.ID), s.taskNotify(step.ID))

	s.opts.Logger.LogStep(s.id, step.ID, s.engine.Index(), step.Kind.String())
	s.record(ctx, step.ID, "step_enter", step.Kind.String())
	switch {
	case m.Err != nil:
		s.opts.Logger.LogTask(s.id, step.ID, observability.EventTypeConfigError, m.Err.Error())
		s.record(ctx, step.ID, "config_error", m.Err.Error())
	case m.Task != nil:
		s.opts.Logger.LogTask(s.id, step.ID, observability.EventTypeTaskMounted, "")
	}

	observability.SetStatus(observability.RolePlaying, s.script.Title,
		fmt.Sprintf("%d/%d %s", s.engine.Index()+1, s.engine.Len(), step.Kind))
}

func (s *Session) taskDone(stepID int) func() {
	return func() { s.post(taskSignal{stepID: stepID, done: true}) }
}

func (s *Session) taskNotify(stepID int) func(string) {
	return func(text string) { s.post(taskSignal{stepID: stepID, feedback: text}) }
}

// post may be called from any goroutine.
func (s *Session) post(sig taskSignal) {
	select {
	case s.signals <- sig:
	case <-s.stopped:
	}
}

func (s *Session) show() error {
	return s.display.Show(s.Frame())
}

// Frame snapshots what the learner should currently see.
func (s *Session) Frame() Frame {
	step := s.engine.CurrentStep()
	f := Frame{
		SessionID:    s.id,
		LessonTitle:  s.script.Title,
		Index:        s.engine.Index(),
		Total:        s.engine.Len(),
		StepID:       step.ID,
		Kind:         step.Kind,
		Speaker:      step.Speaker.DisplayName(),
		Narration:    s.rev.Text(),
		Revealing:    s.rev.Revealing(),
		Feedback:     s.feedback,
		Phase:        s.engine.Phase(s.rev.Revealing()),
		CanAdvance:   s.engine.CanAdvance() && !s.rev.Revealing(),
		Terminal:     s.engine.Terminal(),
		AcceptsInput: false,
	}
	if m := s.ren.Current(); m != nil {
		f.Body = m.View.Render(s.opts.Width)
		f.AcceptsInput = m.Task != nil && !s.engine.TaskSatisfied()
		if m.Err != nil {
			f.ConfigError = m.Err.Error()
		}
	}
	return f
}

func (s *Session) record(ctx context.Context, stepID int, kind, detail string) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.RecordEvent(ctx, s.id, stepID, kind, detail); err != nil {
		log.Printf("Error journaling %s for step %d: %v", kind, stepID, err)
	}
}

func (s *Session) finish(ctx context.Context, completed bool) Result {
	res := Result{
		SessionID: s.id,
		LessonID:  s.script.ID,
		Index:     s.engine.Index(),
		Completed: completed,
		Aborted:   !completed,
	}
	s.opts.Logger.LogLesson(s.id, s.script.ID, false, res.Aborted)
	if s.opts.Recorder != nil {
		// The play context may already be cancelled; the journal entry
		// should still land.
		if err := s.opts.Recorder.FinishSession(context.WithoutCancel(ctx), s.id, completed); err != nil {
			log.Printf("Error closing journal for session %s: %v", s.id, err)
		}
	}
	observability.SetStatus(observability.RoleIdle, "", "")
	if s.opts.OnExit != nil {
		s.opts.OnExit(res)
	}
	return res
}
