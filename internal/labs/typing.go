package labs

import (
	"fmt"
	"strings"
)

// TypingLab asks the learner to reproduce a short snippet exactly.
type TypingLab struct{}

func NewTypingLab() *TypingLab {
	return &TypingLab{}
}

func (l *TypingLab) Name() string {
	return "typing"
}

func (l *TypingLab) Description() string {
	return "Type a snippet exactly as shown. Config: text."
}

func (l *TypingLab) Mount(env Env, config map[string]any) (Task, error) {
	text, err := cfgString(config, "text")
	if err != nil {
		return nil, fmt.Errorf("typing: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("typing: text is empty")
	}
	return &typingTask{env: env, text: text}, nil
}

type typingTask struct {
	env    Env
	text   string
	solved bool
}

func (t *typingTask) Prompt() string {
	return fmt.Sprintf("  Type this line:\n    %s", t.text)
}

func (t *typingTask) Handle(input string) {
	if t.solved {
		return
	}
	got := strings.TrimSpace(input)
	if got != t.text {
		t.env.Notify(fmt.Sprintf("Mismatch at column %d.", firstDiff(got, t.text)+1))
		return
	}
	t.solved = true
	t.env.Notify("Perfect copy.")
	t.env.Done()
}

func (t *typingTask) Close() {}

func firstDiff(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	i := 0
	for i < len(ra) && i < len(rb) && ra[i] == rb[i] {
		i++
	}
	return i
}
