package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rahul/storylab/internal/labs"
	"github.com/rahul/storylab/internal/scenario"
)

// PlaceholderText is shown in place of a task that cannot be mounted.
const PlaceholderText = "No task available for this step."

type imageView struct {
	p scenario.ImagePayload
}

func (v imageView) Render(width int) string {
	label := v.p.Asset
	if label == "" {
		label = "image"
	}
	inner := clampWidth(width) - 4
	label = truncate("["+label+"]", inner)

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", inner+2) + "┐\n")
	fmt.Fprintf(&b, "│ %s%s │\n", label, strings.Repeat(" ", inner-utf8.RuneCountInString(label)))
	b.WriteString("└" + strings.Repeat("─", inner+2) + "┘")
	if v.p.Caption != "" {
		for _, line := range Wrap(v.p.Caption, clampWidth(width)-2) {
			b.WriteString("\n  " + line)
		}
	}
	return b.String()
}

type codeView struct {
	p scenario.CodePayload
}

func (v codeView) Render(width int) string {
	highlight := make(map[int]bool, len(v.p.Highlight))
	for _, n := range v.p.Highlight {
		highlight[n] = true
	}

	var b strings.Builder
	if v.p.Language != "" {
		fmt.Fprintf(&b, "── %s ──\n", v.p.Language)
	}
	lines := strings.Split(v.p.Code, "\n")
	digits := len(fmt.Sprint(len(lines)))
	for i, line := range lines {
		mark := " "
		if highlight[i+1] {
			mark = "▶"
		}
		row := fmt.Sprintf("%s %*d │ %s", mark, digits, i+1, line)
		b.WriteString(truncate(strings.TrimRight(row, " "), clampWidth(width)))
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type summaryView struct {
	p scenario.SummaryPayload
}

func (v summaryView) Render(width int) string {
	title := v.p.Title
	if title == "" {
		title = "What we learned"
	}
	var b strings.Builder
	b.WriteString(title)
	for _, point := range v.p.Points {
		for i, line := range Wrap(point, clampWidth(width)-4) {
			prefix := "    "
			if i == 0 {
				prefix = "  • "
			}
			b.WriteString("\n" + prefix + line)
		}
	}
	return b.String()
}

type victoryView struct {
	p scenario.VictoryPayload
}

func (v victoryView) Render(width int) string {
	msg := v.p.Message
	if msg == "" {
		msg = "Lesson complete!"
	}
	return "★ " + strings.Join(Wrap(msg, clampWidth(width)-2), "\n  ")
}

type taskView struct {
	task labs.Task
}

func (v taskView) Render(int) string {
	return v.task.Prompt()
}

type placeholderView struct {
	err error
}

func (v placeholderView) Render(int) string {
	return "⚠ " + PlaceholderText
}

func clampWidth(width int) int {
	if width < 20 {
		return 20
	}
	if width > 120 {
		return 120
	}
	return width
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}

// Wrap breaks text into lines of at most width runes, splitting on
// spaces. Words longer than width are kept whole.
func Wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if utf8.RuneCountInString(line)+1+utf8.RuneCountInString(w) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}
