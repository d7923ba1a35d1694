package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rahul/storylab/internal/catalogue"
	"github.com/rahul/storylab/internal/render"
	"github.com/rahul/storylab/internal/session"
)

// Gateway hosts lessons on one front-end (terminal, Telegram, Discord).
type Gateway interface {
	// Start serves learners until ctx is cancelled or the front-end closes.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Messenger sends a message to a specific chat.
type Messenger interface {
	Send(chatID string, text string) error
}

// Host opens play sessions for lessons in a catalogue. Every gateway
// shares one Host.
type Host struct {
	Catalogue *catalogue.Catalogue
	Labs      render.Mounter
	// Options are the defaults for every session.
	Options session.Options
}

// Open prepares a session for lessonID. Zero width or delay keep the
// Host defaults. onExit runs after the Host's own exit handling.
func (h *Host) Open(lessonID string, display session.Display, width int, delay time.Duration, onExit func(session.Result)) (*session.Session, error) {
	lesson, ok := h.Catalogue.Get(lessonID)
	if !ok {
		return nil, fmt.Errorf("unknown lesson %q", lessonID)
	}

	opts := h.Options
	if width > 0 {
		opts.Width = width
	}
	if delay > 0 {
		opts.RevealDelay = delay
	}
	base := opts.OnExit
	opts.OnExit = func(r session.Result) {
		if r.Completed {
			log.Printf("\033[96m[ DONE ] %s finished by session %s\033[0m", r.LessonID, r.SessionID)
		} else {
			log.Printf("\033[95m[ EXIT ] %s left at step %d by session %s\033[0m", r.LessonID, r.Index+1, r.SessionID)
		}
		if base != nil {
			base(r)
		}
		if onExit != nil {
			onExit(r)
		}
	}
	return session.New(lesson.Script, h.Labs, display, opts)
}

// FormatLessons renders the catalogue as a plain-text menu.
func FormatLessons(list []catalogue.Lesson) string {
	if len(list) == 0 {
		return "No lessons available."
	}
	width := 0
	for _, l := range list {
		if n := len(l.ID()); n > width {
			width = n
		}
	}
	var b strings.Builder
	for i, l := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		chapter := l.Script.Chapter
		if chapter == "" {
			chapter = "-"
		}
		fmt.Fprintf(&b, "%d. %-*s  ch.%s  %s (%d steps)", i+1, width, l.ID(), chapter, l.Script.Title, l.Script.Len())
		if l.Warnings != nil {
			b.WriteString(" ⚠")
		}
	}
	return b.String()
}

var (
	_ Gateway   = (*TerminalGateway)(nil)
	_ Gateway   = (*TelegramGateway)(nil)
	_ Gateway   = (*DiscordGateway)(nil)
	_ Messenger = (*TelegramGateway)(nil)
	_ Messenger = (*DiscordGateway)(nil)
)
