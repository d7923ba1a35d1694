package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rahul/storylab/internal/session"
)

const (
	chatWidth       = 48
	chatRevealDelay = time.Millisecond

	helpText = "Commands:\n/lessons - list lessons\n/start <lesson> - begin a lesson\n/next - continue\n/skip - show the whole line\n/quit - leave the lesson\nAnything else is your answer to the current task."
	busyText = "Another learner is in the middle of a lesson. Try again later."
	idleText = "No lesson running. Send /lessons, then /start <lesson>."
)

type commandKind int

const (
	cmdInput commandKind = iota
	cmdStart
	cmdNext
	cmdSkip
	cmdQuit
	cmdLessons
	cmdHelp
)

type command struct {
	kind commandKind
	arg  string
}

func parseCommand(text string) command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return command{kind: cmdInput, arg: text}
	}
	name, arg, _ := strings.Cut(text[1:], " ")
	// Group chats address commands as /next@botname.
	name, _, _ = strings.Cut(name, "@")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "start", "play":
		return command{kind: cmdStart, arg: arg}
	case "next", "n":
		return command{kind: cmdNext}
	case "skip":
		return command{kind: cmdSkip}
	case "quit", "exit", "stop":
		return command{kind: cmdQuit}
	case "lessons", "list":
		return command{kind: cmdLessons}
	}
	return command{kind: cmdHelp}
}

func (c command) action() session.Action {
	switch c.kind {
	case cmdNext:
		return session.Action{Kind: session.ActionNext}
	case cmdSkip:
		return session.Action{Kind: session.ActionSkip}
	case cmdQuit:
		return session.Action{Kind: session.ActionExit}
	}
	return session.Action{Kind: session.ActionInput, Text: c.arg}
}

type sendFunc func(chatID, text string) error

// chatRoom plays one lesson at a time, bound to the chat that started
// it. Both chat gateways share it.
type chatRoom struct {
	host *Host
	send sendFunc

	mu      sync.Mutex
	chatID  string
	actions chan session.Action
	done    chan struct{}
}

func newChatRoom(host *Host, send sendFunc) *chatRoom {
	return &chatRoom{host: host, send: send}
}

func (r *chatRoom) reply(chatID, text string) {
	if err := r.send(chatID, text); err != nil {
		log.Printf("Error replying to chat %s: %v", chatID, err)
	}
}

// handle may be called from several goroutines.
func (r *chatRoom) handle(ctx context.Context, chatID, text string) {
	cmd := parseCommand(text)

	r.mu.Lock()
	bound, actions, done := r.chatID, r.actions, r.done
	r.mu.Unlock()

	if bound != "" && bound != chatID {
		r.reply(chatID, busyText)
		return
	}

	switch cmd.kind {
	case cmdHelp:
		r.reply(chatID, helpText)
	case cmdLessons:
		r.reply(chatID, FormatLessons(r.host.Catalogue.List()))
	case cmdStart:
		if bound != "" {
			r.reply(chatID, "A lesson is already running. Send /quit to leave it first.")
			return
		}
		if cmd.arg == "" {
			r.reply(chatID, "Usage: /start <lesson>\n\n"+FormatLessons(r.host.Catalogue.List()))
			return
		}
		r.start(ctx, chatID, cmd.arg)
	default:
		if bound == "" {
			r.reply(chatID, idleText)
			return
		}
		select {
		case actions <- cmd.action():
		case <-done:
		case <-ctx.Done():
		}
	}
}

func (r *chatRoom) start(ctx context.Context, chatID, lessonID string) {
	display := &chatDisplay{send: func(text string) error { return r.send(chatID, text) }}
	s, err := r.host.Open(lessonID, display, chatWidth, chatRevealDelay, nil)
	if err != nil {
		r.reply(chatID, fmt.Sprintf("Cannot start %q: %v", lessonID, err))
		return
	}

	actions := make(chan session.Action)
	done := make(chan struct{})

	r.mu.Lock()
	if r.chatID != "" {
		r.mu.Unlock()
		r.reply(chatID, busyText)
		return
	}
	r.chatID, r.actions, r.done = chatID, actions, done
	r.mu.Unlock()

	log.Printf("🎬 Chat %s started %s (session %s)", chatID, lessonID, s.ID())
	go func() {
		defer close(done)
		res, err := s.Run(ctx, actions)
		if err != nil && ctx.Err() == nil {
			log.Printf("Session %s ended with error: %v", s.ID(), err)
		}

		r.mu.Lock()
		r.chatID, r.actions, r.done = "", nil, nil
		r.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if res.Completed {
			r.reply(chatID, "Lesson complete. Send /lessons to pick another.")
		} else {
			r.reply(chatID, "You left the lesson. Send /lessons to pick another.")
		}
	}()
}

// chatDisplay sends settled frames. Chats cannot animate, so in-progress
// reveals are not sent.
type chatDisplay struct {
	send func(text string) error
	last string
}

func (d *chatDisplay) Show(f session.Frame) error {
	if !f.Settled() {
		return nil
	}
	text := FormatFrame(f)
	if text == d.last {
		return nil
	}
	d.last = text
	// A lost message should not end the lesson.
	if err := d.send(text); err != nil {
		log.Printf("Error sending frame for step %d: %v", f.StepID, err)
	}
	return nil
}

// FormatFrame renders a frame as a chat message.
func FormatFrame(f session.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📘 %s · %d/%d\n", f.LessonTitle, f.Index+1, f.Total)
	if f.Narration != "" {
		if f.Speaker != "" {
			b.WriteString(f.Speaker + ": ")
		}
		b.WriteString(f.Narration + "\n")
	}
	if f.Body != "" {
		b.WriteString("\n" + f.Body + "\n")
	}
	if f.Feedback != "" {
		b.WriteString("\n» " + f.Feedback + "\n")
	}

	switch {
	case f.Terminal:
		b.WriteString("\nSend /next to finish.")
	case f.CanAdvance:
		b.WriteString("\nSend /next to continue.")
	case f.ConfigError != "":
		b.WriteString("\nThis step cannot be completed. Send /quit to leave.")
	case f.AcceptsInput:
		b.WriteString("\nReply with your answer.")
	}
	return strings.TrimRight(b.String(), "\n")
}

// clip shortens text to at most limit runes for chat APIs with a
// message size cap.
func clip(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	r := []rune(text)
	return string(r[:limit-1]) + "…"
}
