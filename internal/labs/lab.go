package labs

import (
	"context"
	"fmt"
	"sort"
)

// Env connects a mounted task to the step that owns it.
type Env struct {
	// Ctx is cancelled when the task is unmounted.
	Ctx context.Context
	// Done reports that the learner completed the task. It may be called
	// any number of times and from any goroutine.
	Done func()
	// Notify pushes feedback text to the learner. It may be called from
	// any goroutine.
	Notify func(text string)
}

// Task is one mounted interactive exercise.
type Task interface {
	// Prompt renders the task's current state.
	Prompt() string
	// Handle receives one line of learner input.
	Handle(input string)
	// Close releases the task. Callbacks that race with Close are
	// dropped by the owner.
	Close()
}

// Lab defines the interface for all interactive exercises.
type Lab interface {
	Name() string
	Description() string
	// Mount builds a fresh task from a step's configuration.
	Mount(env Env, config map[string]any) (Task, error)
}

// Registry manages the set of available labs.
type Registry struct {
	Labs map[string]Lab
}

func NewRegistry() *Registry {
	return &Registry{
		Labs: make(map[string]Lab),
	}
}

func (r *Registry) Register(l Lab) {
	r.Labs[l.Name()] = l
}

func (r *Registry) Get(name string) Lab {
	return r.Labs[name]
}

// Known reports whether a lab is registered under name.
func (r *Registry) Known(name string) bool {
	_, ok := r.Labs[name]
	return ok
}

// Names returns the registered lab names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Labs))
	for name := range r.Labs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mount builds a task with the named lab.
func (r *Registry) Mount(name string, env Env, config map[string]any) (Task, error) {
	l := r.Get(name)
	if l == nil {
		return nil, fmt.Errorf("lab %q is not registered", name)
	}
	return l.Mount(env, config)
}

// Check mounts the named lab once against a cancelled context and
// closes the task straight away, reporting whether the config could
// ever produce a playable task.
func (r *Registry) Check(name string, config map[string]any) error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task, err := r.Mount(name, Env{Ctx: ctx, Done: func() {}, Notify: func(string) {}}, config)
	if err != nil {
		return err
	}
	task.Close()
	return nil
}

// NewDefaultRegistry registers the built-in labs. grader may be nil, in
// which case free-form answers always pass.
func NewDefaultRegistry(grader Grader) *Registry {
	r := NewRegistry()
	r.Register(NewToggleLab())
	r.Register(NewQuizLab())
	r.Register(NewTypingLab())
	r.Register(NewFreeformLab(grader))
	return r
}
