package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rahul/storylab/internal/labs"
	"github.com/rahul/storylab/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLab struct {
	mounts int
	tasks  []*countingTask
}

func (l *countingLab) Name() string        { return "counter" }
func (l *countingLab) Description() string { return "counts" }

func (l *countingLab) Mount(env labs.Env, config map[string]any) (labs.Task, error) {
	if config["fail"] == true {
		return nil, errors.New("bad config")
	}
	l.mounts++
	t := &countingTask{env: env}
	l.tasks = append(l.tasks, t)
	return t, nil
}

type countingTask struct {
	env    labs.Env
	inputs int
	closed bool
}

func (t *countingTask) Prompt() string { return "count: " + strings.Repeat("|", t.inputs) }
func (t *countingTask) Handle(string) {
	t.inputs++
	// Report completion from two code paths.
	t.env.Done()
	t.env.Done()
}
func (t *countingTask) Close() { t.closed = true }

func newRenderer() (*Renderer, *countingLab) {
	lab := &countingLab{}
	reg := labs.NewRegistry()
	reg.Register(lab)
	return New(reg), lab
}

func TestRendererStaticKinds(t *testing.T) {
	r, _ := newRenderer()
	ctx := context.Background()

	tests := []struct {
		step scenario.Step
		want []string
	}{
		{scenario.Step{ID: 1, Kind: scenario.KindImage, Payload: scenario.ImagePayload{Asset: "rack.png", Caption: "The server room"}}, []string{"[rack.png]", "The server room"}},
		{scenario.Step{ID: 2, Kind: scenario.KindCodeExplain, Payload: scenario.CodePayload{Language: "go", Code: "a := 1\nb := 2", Highlight: []int{2}}}, []string{"── go ──", "  1 │ a := 1", "▶ 2 │ b := 2"}},
		{scenario.Step{ID: 3, Kind: scenario.KindTechSummary, Payload: scenario.SummaryPayload{Points: []string{"Delete, don't update"}}}, []string{"What we learned", "• Delete, don't update"}},
		{scenario.Step{ID: 4, Kind: scenario.KindVictory}, []string{"Lesson complete!"}},
	}

	for _, tt := range tests {
		m := r.Mount(ctx, tt.step, nil, nil)
		require.NotNil(t, m)
		assert.NoError(t, m.Err)
		assert.Nil(t, m.Task)
		out := m.View.Render(60)
		for _, want := range tt.want {
			assert.Contains(t, out, want, "step %d", tt.step.ID)
		}
	}
}

func TestRendererMountsTaskAndRelaysCompletion(t *testing.T) {
	r, lab := newRenderer()
	done := 0
	step := scenario.Step{ID: 7, Kind: scenario.KindInteractiveTask, Payload: &scenario.TaskPayload{Lab: "counter"}}

	m := r.Mount(context.Background(), step, func() { done++ }, nil)
	require.NoError(t, m.Err)
	require.NotNil(t, m.Task)

	m.Task.Handle("go")
	assert.Equal(t, 2, done, "renderer must not deduplicate completion calls")
	assert.Equal(t, "count: |", m.View.Render(80))

	again := r.Mount(context.Background(), step, func() { done++ }, nil)
	assert.Same(t, m, again)
	assert.Equal(t, 1, lab.mounts)
}

func TestRendererRemountsByStepID(t *testing.T) {
	r, lab := newRenderer()
	first := scenario.Step{ID: 1, Kind: scenario.KindInteractiveTask, Payload: &scenario.TaskPayload{Lab: "counter"}}
	second := scenario.Step{ID: 2, Kind: scenario.KindInteractiveTask, Payload: &scenario.TaskPayload{Lab: "counter"}}

	m1 := r.Mount(context.Background(), first, func() {}, nil)
	m1.Task.Handle("x")
	firstCtx := lab.tasks[0].env.Ctx

	m2 := r.Mount(context.Background(), second, func() {}, nil)
	assert.Equal(t, 2, lab.mounts)
	assert.True(t, lab.tasks[0].closed)
	assert.Error(t, firstCtx.Err(), "unmounted task context should be cancelled")
	assert.Equal(t, "count: ", m2.View.Render(80), "fresh task must not inherit state")

	r.Unmount()
	assert.True(t, lab.tasks[1].closed)
	assert.Nil(t, r.Current())
}

func TestRendererPlaceholderOnBadTaskConfig(t *testing.T) {
	r, lab := newRenderer()
	steps := []scenario.Step{
		{ID: 1, Kind: scenario.KindInteractiveTask},
		{ID: 2, Kind: scenario.KindInteractiveTask, Payload: &scenario.TaskPayload{Lab: "missing"}},
		{ID: 3, Kind: scenario.KindInteractiveTask, Payload: &scenario.TaskPayload{Lab: "counter", Config: map[string]any{"fail": true}}},
	}

	for _, step := range steps {
		called := false
		m := r.Mount(context.Background(), step, func() { called = true }, nil)
		var cfgErr *scenario.ConfigurationError
		require.True(t, errors.As(m.Err, &cfgErr), "step %d: got %v", step.ID, m.Err)
		assert.Equal(t, step.ID, cfgErr.StepID)
		assert.Nil(t, m.Task)
		assert.Contains(t, m.View.Render(80), PlaceholderText)
		assert.False(t, called)
	}
	assert.Equal(t, 0, lab.mounts)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, []string{"the quick", "brown fox"}, Wrap("the quick brown fox", 10))
	assert.Equal(t, []string{"supercalifragilistic", "ok"}, Wrap("supercalifragilistic ok", 5))
	assert.Equal(t, []string{"a", "", "b"}, Wrap("a\n\nb", 10))
}
