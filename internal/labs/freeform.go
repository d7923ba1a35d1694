package labs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rahul/storylab/internal/grading"
)

// Grader judges a free-form answer. Implementations never fail; they
// substitute a passing verdict instead.
type Grader interface {
	Grade(ctx context.Context, req grading.Request) grading.Verdict
}

const defaultGradeTimeout = 20 * time.Second

// FreeformLab asks an open question and sends the answer to a Grader.
type FreeformLab struct {
	Grader  Grader
	Timeout time.Duration
}

func NewFreeformLab(grader Grader) *FreeformLab {
	return &FreeformLab{Grader: grader, Timeout: defaultGradeTimeout}
}

func (l *FreeformLab) Name() string {
	return "freeform"
}

func (l *FreeformLab) Description() string {
	return "Open question graded by the examiner model. Config: question, rubric (optional)."
}

func (l *FreeformLab) Mount(env Env, config map[string]any) (Task, error) {
	question, err := cfgString(config, "question")
	if err != nil {
		return nil, fmt.Errorf("freeform: %w", err)
	}
	rubric, _ := cfgString(config, "rubric")
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultGradeTimeout
	}
	return &freeformTask{
		lab:      l.Name(),
		env:      env,
		grader:   l.Grader,
		timeout:  timeout,
		question: question,
		rubric:   rubric,
	}, nil
}

type freeformTask struct {
	lab      string
	env      Env
	grader   Grader
	timeout  time.Duration
	question string
	rubric   string

	mu     sync.Mutex
	busy   bool
	solved bool
}

func (t *freeformTask) Prompt() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.solved:
		return fmt.Sprintf("  %s\n  (answered)", t.question)
	case t.busy:
		return fmt.Sprintf("  %s\n  The examiner is reading your answer...", t.question)
	default:
		return fmt.Sprintf("  %s\n  Type your answer and press Enter.", t.question)
	}
}

func (t *freeformTask) Handle(input string) {
	answer := strings.TrimSpace(input)
	if answer == "" {
		t.env.Notify("Write something first.")
		return
	}

	t.mu.Lock()
	if t.solved {
		t.mu.Unlock()
		return
	}
	if t.busy {
		t.mu.Unlock()
		t.env.Notify("Still grading your last answer.")
		return
	}
	t.busy = true
	t.mu.Unlock()

	if t.grader == nil {
		t.finish(grading.Verdict{Pass: true, Message: "Answer recorded."})
		return
	}

	req := grading.Request{Lab: t.lab, Question: t.question, Rubric: t.rubric, Answer: answer}
	go t.grade(req)
}

func (t *freeformTask) grade(req grading.Request) {
	ctx, cancel := context.WithTimeout(t.env.Ctx, t.timeout)
	defer cancel()

	res := make(chan grading.Verdict, 1)
	go func() { res <- t.grader.Grade(ctx, req) }()

	select {
	case v := <-res:
		t.finish(v)
	case <-time.After(t.timeout):
		t.finish(grading.Verdict{Pass: true, Fallback: true, Message: "The examiner dozed off. You pass this one."})
	case <-t.env.Ctx.Done():
	}
}

func (t *freeformTask) finish(v grading.Verdict) {
	if t.env.Ctx.Err() != nil {
		return
	}
	t.mu.Lock()
	t.busy = false
	if v.Pass {
		t.solved = true
	}
	t.mu.Unlock()

	if v.Pass {
		t.env.Done()
	}
	t.env.Notify(v.Message)
}

func (t *freeformTask) Close() {}
