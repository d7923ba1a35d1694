package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rahul/storylab/internal/render"
	"github.com/rahul/storylab/internal/session"
	"golang.org/x/term"
)

const (
	keyCtrlC     = 3
	keyBackspace = 8
	keyDelete    = 127
)

// input is one key in raw mode, or one line when stdin is not a
// terminal.
type input struct {
	key    byte
	line   string
	isLine bool
}

// TerminalGateway plays lessons full-screen on the local terminal.
type TerminalGateway struct {
	Host *Host
	In   *os.File
	Out  io.Writer
	// Lesson, when set, is played once instead of showing the menu.
	Lesson string

	mu    sync.Mutex
	raw   bool
	frame session.Frame
	line  []byte
}

func NewTerminalGateway(host *Host, lesson string) *TerminalGateway {
	return &TerminalGateway{Host: host, In: os.Stdin, Out: os.Stdout, Lesson: lesson}
}

func (t *TerminalGateway) Start(ctx context.Context) error {
	fd := int(t.In.Fd())
	t.raw = term.IsTerminal(fd)
	if t.raw {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		defer term.Restore(fd, old)
		fmt.Fprint(t.Out, "\033[?25l")
		defer fmt.Fprint(t.Out, "\033[?25h\033[2J\033[H")
	}

	inputs := make(chan input)
	go t.read(inputs)

	lesson := t.Lesson
	for {
		if lesson == "" {
			var ok bool
			if lesson, ok = t.menu(ctx, inputs); !ok {
				return nil
			}
		}
		if err := t.play(ctx, lesson, inputs); err != nil {
			return err
		}
		if t.Lesson != "" || ctx.Err() != nil {
			return nil
		}
		lesson = ""
	}
}

func (t *TerminalGateway) Stop() error {
	return nil
}

// read never returns while stdin stays open; the process exit reclaims it.
func (t *TerminalGateway) read(out chan<- input) {
	defer close(out)
	if !t.raw {
		sc := bufio.NewScanner(t.In)
		for sc.Scan() {
			out <- input{line: sc.Text(), isLine: true}
		}
		return
	}
	buf := make([]byte, 64)
	for {
		n, err := t.In.Read(buf)
		for _, b := range buf[:n] {
			out <- input{key: b}
		}
		if err != nil {
			return
		}
	}
}

func (t *TerminalGateway) menu(ctx context.Context, inputs <-chan input) (string, bool) {
	list := t.Host.Catalogue.List()
	t.write("\033[H\033[2J" + "STORYLAB\n\n" + FormatLessons(list) + "\n\nPick a lesson by number, q to quit.\n")
	var pick []byte
	for {
		select {
		case <-ctx.Done():
			return "", false
		case in, ok := <-inputs:
			if !ok {
				return "", false
			}
			choice := in.line
			if !in.isLine {
				submit, quit := menuKey(in.key, &pick)
				if quit {
					return "", false
				}
				if !submit {
					t.write("\r\033[K> " + string(pick))
					continue
				}
				choice = string(pick)
				pick = pick[:0]
				t.write("\n")
			}
			choice = strings.TrimSpace(choice)
			if choice == "q" {
				return "", false
			}
			if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(list) {
				return list[n-1].ID(), true
			}
			if _, ok := t.Host.Catalogue.Get(choice); ok {
				return choice, true
			}
		}
	}
}

// menuKey folds one raw keypress into the pending menu choice. Enter
// submits it; Ctrl-C, or q on an empty choice, quits.
func menuKey(b byte, pick *[]byte) (submit, quit bool) {
	switch {
	case b == keyCtrlC:
		return false, true
	case b == '\r' || b == '\n':
		return len(*pick) > 0, false
	case b == keyBackspace || b == keyDelete:
		if n := len(*pick); n > 0 {
			*pick = (*pick)[:n-1]
		}
	case b == 'q' && len(*pick) == 0:
		return false, true
	case b >= 0x20 && b < keyDelete:
		*pick = append(*pick, b)
	}
	return false, false
}

func (t *TerminalGateway) play(ctx context.Context, lessonID string, inputs <-chan input) error {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = 80
	}
	s, err := t.Host.Open(lessonID, t, width, 0, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.line = t.line[:0]
	t.mu.Unlock()

	actions := make(chan session.Action)
	errc := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, actions)
		errc <- err
	}()

	ended := func(err error) error {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	for {
		select {
		case err := <-errc:
			return ended(err)
		case in, ok := <-inputs:
			if !ok {
				close(actions)
				return ended(<-errc)
			}
			t.mu.Lock()
			a, send := translate(in, t.frame.AcceptsInput, &t.line)
			t.mu.Unlock()
			if !send {
				t.redraw()
				continue
			}
			select {
			case actions <- a:
			case err := <-errc:
				return ended(err)
			}
		}
	}
}

// translate maps learner input to a session action. The line buffer
// collects an answer while the current task accepts input.
func translate(in input, acceptsInput bool, line *[]byte) (session.Action, bool) {
	if in.isLine {
		return lineAction(in.line, acceptsInput)
	}
	b := in.key
	if b == keyCtrlC {
		return session.Action{Kind: session.ActionExit}, true
	}
	if acceptsInput {
		switch b {
		case '\r', '\n':
			text := strings.TrimSpace(string(*line))
			*line = (*line)[:0]
			if text == "" {
				return session.Action{Kind: session.ActionNext}, true
			}
			return session.Action{Kind: session.ActionInput, Text: text}, true
		case keyDelete, keyBackspace:
			if len(*line) > 0 {
				_, size := utf8.DecodeLastRune(*line)
				*line = (*line)[:len(*line)-size]
			}
		default:
			if b >= ' ' {
				*line = append(*line, b)
			}
		}
		return session.Action{}, false
	}
	switch b {
	case '\r', '\n', 'n':
		return session.Action{Kind: session.ActionNext}, true
	case ' ':
		return session.Action{Kind: session.ActionSkip}, true
	case 'q':
		return session.Action{Kind: session.ActionExit}, true
	}
	return session.Action{}, false
}

func lineAction(line string, acceptsInput bool) (session.Action, bool) {
	text := strings.TrimSpace(line)
	switch {
	case text == "":
		return session.Action{Kind: session.ActionNext}, true
	case text == "/quit":
		return session.Action{Kind: session.ActionExit}, true
	case acceptsInput:
		return session.Action{Kind: session.ActionInput, Text: text}, true
	case text == "n":
		return session.Action{Kind: session.ActionNext}, true
	case text == "s":
		return session.Action{Kind: session.ActionSkip}, true
	case text == "q":
		return session.Action{Kind: session.ActionExit}, true
	}
	return session.Action{}, false
}

// Show implements session.Display.
func (t *TerminalGateway) Show(f session.Frame) error {
	t.mu.Lock()
	t.frame = f
	if !f.AcceptsInput {
		t.line = t.line[:0]
	}
	t.mu.Unlock()
	if !t.raw && !f.Settled() {
		return nil
	}
	return t.redraw()
}

func (t *TerminalGateway) redraw() error {
	t.mu.Lock()
	screen := drawFrame(t.frame, string(t.line))
	t.mu.Unlock()
	if t.raw {
		screen = "\033[H\033[2J" + screen
	}
	return t.write(screen + "\n")
}

func (t *TerminalGateway) write(s string) error {
	if t.raw {
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	_, err := io.WriteString(t.Out, s)
	return err
}

func drawFrame(f session.Frame, line string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  ·  %d/%d\n", f.LessonTitle, f.Index+1, f.Total)
	b.WriteString(strings.Repeat("─", 40) + "\n\n")

	narration := f.Narration
	if f.Speaker != "" && narration != "" {
		narration = f.Speaker + ": " + narration
	}
	if narration != "" {
		b.WriteString(strings.Join(render.Wrap(narration, 76), "\n") + "\n\n")
	}
	if f.Body != "" {
		b.WriteString(f.Body + "\n\n")
	}
	if f.Feedback != "" {
		b.WriteString("» " + f.Feedback + "\n\n")
	}
	if f.AcceptsInput {
		b.WriteString("> " + line + "_\n\n")
	}

	switch {
	case f.Revealing:
		b.WriteString("[space] skip  [enter] show all")
	case f.Terminal:
		b.WriteString("[enter] finish")
	case f.CanAdvance:
		b.WriteString("[enter] next  [q] leave")
	case f.AcceptsInput:
		b.WriteString("type your answer, [enter] submit  [ctrl-c] leave")
	default:
		b.WriteString("[q] leave")
	}
	return b.String()
}
