package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahul/storylab/internal/engine"
	"github.com/rahul/storylab/internal/labs"
	"github.com/rahul/storylab/internal/render"
	"github.com/rahul/storylab/internal/scenario"
)

type chanDisplay struct {
	frames chan Frame
}

func (d *chanDisplay) Show(f Frame) error {
	d.frames <- f
	return nil
}

type memRecorder struct {
	mu       sync.Mutex
	events   []string
	finished bool
}

func (r *memRecorder) StartSession(ctx context.Context, sessionID, lessonID string) error {
	return nil
}

func (r *memRecorder) RecordEvent(ctx context.Context, sessionID string, stepID int, kind, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind)
	return nil
}

func (r *memRecorder) FinishSession(ctx context.Context, sessionID string, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = completed
	return nil
}

func waitFor(t *testing.T, frames <-chan Frame, desc string, pred func(Frame) bool) Frame {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case f := <-frames:
			if pred(f) {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func quizScript(t *testing.T) scenario.Script {
	t.Helper()
	s, err := scenario.NewScript("walk", "Walkthrough", "1", []scenario.Step{
		{ID: 1, Kind: scenario.KindImage, Narration: "Look at this.", Payload: scenario.ImagePayload{Caption: "a rack"}},
		{ID: 2, Kind: scenario.KindInteractiveTask, Narration: "Answer me.", Payload: &scenario.TaskPayload{
			Lab: "quiz",
			Config: map[string]any{
				"question": "Two?",
				"options":  []any{"one", "two"},
				"answer":   2,
			},
		}},
		{ID: 3, Kind: scenario.KindVictory, Narration: "Well done."},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSessionGatedWalkthrough(t *testing.T) {
	display := &chanDisplay{frames: make(chan Frame, 1024)}
	rec := &memRecorder{}
	var exited Result
	s, err := New(quizScript(t), labs.NewDefaultRegistry(nil), display, Options{
		RevealDelay: time.Millisecond,
		Recorder:    rec,
		OnExit:      func(r Result) { exited = r },
	})
	if err != nil {
		t.Fatal(err)
	}

	actions := make(chan Action)
	results := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background(), actions)
		results <- res
	}()

	f := waitFor(t, display.frames, "step 1 settled", func(f Frame) bool { return f.Index == 0 && f.Settled() })
	if f.Narration != "Look at this." || !f.CanAdvance || f.Phase != engine.PhaseReadyToAdvance {
		t.Fatalf("unexpected frame: %+v", f)
	}

	actions <- Action{Kind: ActionNext}
	f = waitFor(t, display.frames, "task step settled", func(f Frame) bool { return f.Index == 1 && f.Settled() })
	if f.CanAdvance || f.Phase != engine.PhaseAwaitingTask || !f.AcceptsInput {
		t.Fatalf("task step should be gated: %+v", f)
	}
	if !strings.Contains(f.Body, "Two?") {
		t.Errorf("task prompt missing from body: %q", f.Body)
	}

	actions <- Action{Kind: ActionNext}
	f = waitFor(t, display.frames, "denied advance", func(f Frame) bool { return f.Feedback != "" })
	if f.Index != 1 {
		t.Fatalf("advanced past an unsatisfied task to %d", f.Index)
	}

	actions <- Action{Kind: ActionInput, Text: "1"}
	waitFor(t, display.frames, "wrong answer feedback", func(f Frame) bool { return f.Feedback == "Not quite. Try again." })

	actions <- Action{Kind: ActionInput, Text: "2"}
	f = waitFor(t, display.frames, "ready to advance", func(f Frame) bool { return f.Phase == engine.PhaseReadyToAdvance })
	if !f.CanAdvance || f.AcceptsInput {
		t.Fatalf("satisfied task frame: %+v", f)
	}

	actions <- Action{Kind: ActionNext}
	f = waitFor(t, display.frames, "victory", func(f Frame) bool { return f.Index == 2 && f.Settled() })
	if !f.Terminal || f.CanAdvance || f.Phase != engine.PhaseTerminal {
		t.Fatalf("victory frame: %+v", f)
	}

	actions <- Action{Kind: ActionNext}
	var res Result
	select {
	case res = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not exit")
	}
	if !res.Completed || res.Aborted || res.Index != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if exited.SessionID != s.ID() {
		t.Errorf("exit callback not invoked with the session result")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.finished {
		t.Error("journal not closed as completed")
	}
	joined := strings.Join(rec.events, ",")
	for _, want := range []string{"step_enter", "advance", "task_satisfied"} {
		if !strings.Contains(joined, want) {
			t.Errorf("journal missing %s: %s", want, joined)
		}
	}
}

func TestSessionDeadEndsOnMissingTask(t *testing.T) {
	script, err := scenario.NewScript("broken", "Broken", "", []scenario.Step{
		{ID: 1, Kind: scenario.KindInteractiveTask, Narration: "Oops."},
		{ID: 2, Kind: scenario.KindVictory},
	})
	if err != nil {
		t.Fatal(err)
	}
	display := &chanDisplay{frames: make(chan Frame, 1024)}
	s, err := New(script, labs.NewDefaultRegistry(nil), display, Options{RevealDelay: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	actions := make(chan Action)
	results := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background(), actions)
		results <- res
	}()

	f := waitFor(t, display.frames, "settled", func(f Frame) bool { return f.Settled() })
	if f.ConfigError == "" || !strings.Contains(f.Body, render.PlaceholderText) || f.AcceptsInput {
		t.Fatalf("expected placeholder frame, got %+v", f)
	}
	for i := 0; i < 5; i++ {
		actions <- Action{Kind: ActionNext}
		f = waitFor(t, display.frames, "denied", func(Frame) bool { return true })
		if f.Index != 0 || f.CanAdvance {
			t.Fatalf("moved off a dead-end step: %+v", f)
		}
	}

	actions <- Action{Kind: ActionExit}
	res := <-results
	if res.Completed || !res.Aborted {
		t.Errorf("Expected aborted result, got %+v", res)
	}
}

func TestSessionRapidAdvanceKeepsNarrationConsistent(t *testing.T) {
	var steps []scenario.Step
	for i := 1; i <= 6; i++ {
		steps = append(steps, scenario.Step{
			ID:        i,
			Kind:      scenario.KindTechSummary,
			Narration: strings.Repeat(string(rune('a'+i)), 40),
		})
	}
	steps = append(steps, scenario.Step{ID: 7, Kind: scenario.KindVictory, Narration: "fin"})
	script, err := scenario.NewScript("rapid", "Rapid", "", steps)
	if err != nil {
		t.Fatal(err)
	}

	display := &chanDisplay{frames: make(chan Frame, 4096)}
	s, err := New(script, nil, display, Options{RevealDelay: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	actions := make(chan Action)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, actions)
		close(done)
	}()

	// Each pair of Next presses cuts the reveal short and then advances.
	for i := 0; i < 12; i++ {
		select {
		case actions <- Action{Kind: ActionNext}:
		case <-done:
		}
	}
	waitFor(t, display.frames, "victory", func(f Frame) bool { return f.Terminal && f.Settled() })
	cancel()
	<-done
	close(display.frames)

	for f := range display.frames {
		want := script.Step(f.Index).Narration
		if !strings.HasPrefix(want, f.Narration) {
			t.Fatalf("frame for step %d shows %q, not a prefix of %q", f.StepID, f.Narration, want)
		}
	}
}

func TestNewRejectsEmptyScript(t *testing.T) {
	if _, err := New(scenario.Script{}, nil, &chanDisplay{}, Options{}); err != scenario.ErrEmptyScript {
		t.Fatalf("Expected ErrEmptyScript, got %v", err)
	}
}
