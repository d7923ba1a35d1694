package labs

import (
	"fmt"
	"strconv"
	"strings"
)

// ToggleLab asks the learner to flip named switches into a target
// position, e.g. enabling the right cache layers.
type ToggleLab struct{}

func NewToggleLab() *ToggleLab {
	return &ToggleLab{}
}

func (l *ToggleLab) Name() string {
	return "toggle"
}

func (l *ToggleLab) Description() string {
	return "Flip switches until they match the target configuration. Config: switches, target, initial (optional)."
}

func (l *ToggleLab) Mount(env Env, config map[string]any) (Task, error) {
	names, err := cfgStrings(config, "switches")
	if err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	target, err := cfgBools(config, "target")
	if err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	if len(names) == 0 || len(names) != len(target) {
		return nil, fmt.Errorf("toggle: need as many target values as switches, got %d and %d", len(target), len(names))
	}

	state := make([]bool, len(names))
	if _, ok := config["initial"]; ok {
		initial, err := cfgBools(config, "initial")
		if err != nil {
			return nil, fmt.Errorf("toggle: %w", err)
		}
		if len(initial) != len(names) {
			return nil, fmt.Errorf("toggle: need as many initial values as switches")
		}
		copy(state, initial)
	}

	return &toggleTask{env: env, names: names, target: target, state: state}, nil
}

type toggleTask struct {
	env    Env
	names  []string
	target []bool
	state  []bool
	solved bool
}

func (t *toggleTask) Prompt() string {
	var b strings.Builder
	for i, name := range t.names {
		mark := "OFF"
		if t.state[i] {
			mark = "ON "
		}
		fmt.Fprintf(&b, "  [%d] %s  %s\n", i+1, mark, name)
	}
	if t.solved {
		b.WriteString("  All switches in position.")
	} else {
		b.WriteString("  Type a switch number to flip it.")
	}
	return b.String()
}

func (t *toggleTask) Handle(input string) {
	if t.solved {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(t.names) {
		t.env.Notify(fmt.Sprintf("Pick a switch between 1 and %d.", len(t.names)))
		return
	}
	t.state[n-1] = !t.state[n-1]

	for i := range t.state {
		if t.state[i] != t.target[i] {
			return
		}
	}
	t.solved = true
	t.env.Notify("That's the one. Everything lights up.")
	t.env.Done()
}

func (t *toggleTask) Close() {}
