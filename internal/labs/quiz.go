package labs

import (
	"fmt"
	"strconv"
	"strings"
)

// QuizLab is a single multiple-choice question.
type QuizLab struct{}

func NewQuizLab() *QuizLab {
	return &QuizLab{}
}

func (l *QuizLab) Name() string {
	return "quiz"
}

func (l *QuizLab) Description() string {
	return "Multiple-choice question. Config: question, options, answer (1-based), hint (optional)."
}

func (l *QuizLab) Mount(env Env, config map[string]any) (Task, error) {
	question, err := cfgString(config, "question")
	if err != nil {
		return nil, fmt.Errorf("quiz: %w", err)
	}
	options, err := cfgStrings(config, "options")
	if err != nil {
		return nil, fmt.Errorf("quiz: %w", err)
	}
	answer, err := cfgInt(config, "answer")
	if err != nil {
		return nil, fmt.Errorf("quiz: %w", err)
	}
	if answer < 1 || answer > len(options) {
		return nil, fmt.Errorf("quiz: answer %d is not one of %d options", answer, len(options))
	}
	hint, _ := cfgString(config, "hint")

	return &quizTask{env: env, question: question, options: options, answer: answer, hint: hint}, nil
}

type quizTask struct {
	env      Env
	question string
	options  []string
	answer   int
	hint     string
	misses   int
	solved   bool
}

func (t *quizTask) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n", t.question)
	for i, opt := range t.options {
		fmt.Fprintf(&b, "   %d) %s\n", i+1, opt)
	}
	if !t.solved {
		b.WriteString("  Answer with the option number.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *quizTask) Handle(input string) {
	if t.solved {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(t.options) {
		t.env.Notify(fmt.Sprintf("Answer with a number between 1 and %d.", len(t.options)))
		return
	}
	if n != t.answer {
		t.misses++
		msg := "Not quite. Try again."
		if t.hint != "" && t.misses >= 2 {
			msg = "Hint: " + t.hint
		}
		t.env.Notify(msg)
		return
	}
	t.solved = true
	t.env.Notify("Correct!")
	t.env.Done()
}

func (t *quizTask) Close() {}
