package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rahul/storylab/internal/catalogue"
	"github.com/rahul/storylab/internal/engine"
	"github.com/rahul/storylab/internal/labs"
	"github.com/rahul/storylab/internal/scenario"
	"github.com/rahul/storylab/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		kind commandKind
		arg  string
	}{
		{"/start stale-cache", cmdStart, "stale-cache"},
		{"/start@storylab_bot  two-regions ", cmdStart, "two-regions"},
		{"/next", cmdNext, ""},
		{"/NEXT", cmdNext, ""},
		{"/skip", cmdSkip, ""},
		{"/quit", cmdQuit, ""},
		{"/lessons", cmdLessons, ""},
		{"/wat", cmdHelp, ""},
		{"  delete the key ", cmdInput, "delete the key"},
	}
	for _, tt := range tests {
		got := parseCommand(tt.in)
		assert.Equal(t, tt.kind, got.kind, tt.in)
		assert.Equal(t, tt.arg, got.arg, tt.in)
	}

	assert.Equal(t, session.Action{Kind: session.ActionInput, Text: "2"}, parseCommand("2").action())
	assert.Equal(t, session.ActionExit, parseCommand("/quit").action().Kind)
}

func TestFormatFrame(t *testing.T) {
	f := session.Frame{
		LessonTitle:  "The Stale Price Tag",
		Index:        2,
		Total:        6,
		Speaker:      "Mentor",
		Narration:    "What should the writer do?",
		Body:         "  1) Update\n  2) Delete",
		Feedback:     "Not quite. Try again.",
		Phase:        engine.PhaseAwaitingTask,
		AcceptsInput: true,
	}
	out := FormatFrame(f)
	assert.True(t, strings.HasPrefix(out, "📘 The Stale Price Tag · 3/6\n"))
	assert.Contains(t, out, "Mentor: What should the writer do?")
	assert.Contains(t, out, "» Not quite. Try again.")
	assert.True(t, strings.HasSuffix(out, "Reply with your answer."))

	f.AcceptsInput, f.CanAdvance = false, true
	assert.True(t, strings.HasSuffix(FormatFrame(f), "Send /next to continue."))

	f.CanAdvance, f.ConfigError = false, "missing task configuration"
	assert.Contains(t, FormatFrame(f), "cannot be completed")

	f.ConfigError, f.Terminal = "", true
	assert.True(t, strings.HasSuffix(FormatFrame(f), "Send /next to finish."))
}

func TestTranslateKeys(t *testing.T) {
	var line []byte

	a, ok := translate(input{key: '\r'}, false, &line)
	assert.True(t, ok)
	assert.Equal(t, session.ActionNext, a.Kind)
	a, _ = translate(input{key: ' '}, false, &line)
	assert.Equal(t, session.ActionSkip, a.Kind)
	a, _ = translate(input{key: 'q'}, false, &line)
	assert.Equal(t, session.ActionExit, a.Kind)
	_, ok = translate(input{key: 'x'}, false, &line)
	assert.False(t, ok)

	// While a task accepts input, keys build a line.
	for _, b := range []byte("q 2x") {
		_, ok := translate(input{key: b}, true, &line)
		assert.False(t, ok)
	}
	translate(input{key: keyDelete}, true, &line)
	assert.Equal(t, "q 2", string(line))
	a, ok = translate(input{key: '\r'}, true, &line)
	require.True(t, ok)
	assert.Equal(t, session.Action{Kind: session.ActionInput, Text: "q 2"}, a)
	assert.Empty(t, line)

	a, _ = translate(input{key: '\r'}, true, &line)
	assert.Equal(t, session.ActionNext, a.Kind, "empty answer moves on")
	a, _ = translate(input{key: keyCtrlC}, true, &line)
	assert.Equal(t, session.ActionExit, a.Kind)
}

func TestMenuKeyBuffersUntilEnter(t *testing.T) {
	feed := func(keys string) (string, bool, bool) {
		var pick []byte
		for i := 0; i < len(keys); i++ {
			submit, quit := menuKey(keys[i], &pick)
			if submit || quit {
				return string(pick), submit, quit
			}
		}
		return string(pick), false, false
	}

	pick, submit, quit := feed("12\r")
	assert.True(t, submit)
	assert.False(t, quit)
	assert.Equal(t, "12", pick, "lessons past 9 need both digits")

	pick, submit, _ = feed("13\x7f0\r")
	assert.True(t, submit)
	assert.Equal(t, "10", pick)

	_, submit, _ = feed("\r")
	assert.False(t, submit, "empty choice is not submitted")

	_, _, quit = feed("q")
	assert.True(t, quit)

	pick, _, quit = feed("aq")
	assert.False(t, quit, "q inside a lesson id is text")
	assert.Equal(t, "aq", pick)

	_, _, quit = feed("1\x03")
	assert.True(t, quit)
}

func TestLineAction(t *testing.T) {
	a, _ := lineAction("", true)
	assert.Equal(t, session.ActionNext, a.Kind)
	a, _ = lineAction("q", true)
	assert.Equal(t, session.Action{Kind: session.ActionInput, Text: "q"}, a)
	a, _ = lineAction("q", false)
	assert.Equal(t, session.ActionExit, a.Kind)
	a, _ = lineAction("/quit", true)
	assert.Equal(t, session.ActionExit, a.Kind)
	_, ok := lineAction("hello", false)
	assert.False(t, ok)
}

type outbox struct {
	msg chan [2]string
}

func (o *outbox) send(chatID, text string) error {
	o.msg <- [2]string{chatID, text}
	return nil
}

func (o *outbox) await(t *testing.T, chatID, want string) string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m := <-o.msg:
			if m[0] == chatID && strings.Contains(m[1], want) {
				return m[1]
			}
		case <-deadline:
			t.Fatalf("chat %s never received %q", chatID, want)
		}
	}
}

func testHost(t *testing.T) *Host {
	t.Helper()
	script, err := scenario.NewScript("demo", "Demo", "1", []scenario.Step{
		{ID: 1, Kind: scenario.KindImage, Narration: "Hello."},
		{ID: 2, Kind: scenario.KindVictory, Narration: "Bye."},
	})
	require.NoError(t, err)
	c := catalogue.New()
	require.NoError(t, c.Register(catalogue.Lesson{Script: script}))
	return &Host{Catalogue: c, Labs: labs.NewDefaultRegistry(nil)}
}

func TestChatRoomBindsOneLearner(t *testing.T) {
	box := &outbox{msg: make(chan [2]string, 256)}
	room := newChatRoom(testHost(t), box.send)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room.handle(ctx, "b", "/next")
	box.await(t, "b", idleText)

	room.handle(ctx, "a", "/lessons")
	box.await(t, "a", "demo")

	room.handle(ctx, "a", "/start nope")
	box.await(t, "a", "Cannot start")

	room.handle(ctx, "a", "/start demo")
	box.await(t, "a", "Hello.")

	room.handle(ctx, "b", "/start demo")
	box.await(t, "b", busyText)

	room.handle(ctx, "a", "/next")
	box.await(t, "a", "Send /next to finish.")
	room.handle(ctx, "a", "/next")
	box.await(t, "a", "Lesson complete.")

	room.handle(ctx, "b", "/start demo")
	box.await(t, "b", "Hello.")
	room.handle(ctx, "b", "/quit")
	box.await(t, "b", "You left the lesson.")
}

func TestHostOpen(t *testing.T) {
	host := testHost(t)
	_, err := host.Open("missing", nil, 0, 0, nil)
	assert.Error(t, err)

	var got session.Result
	s, err := host.Open("demo", &nopDisplay{}, 40, time.Millisecond, func(r session.Result) { got = r })
	require.NoError(t, err)

	actions := make(chan session.Action)
	close(actions)
	res, err := s.Run(context.Background(), actions)
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, res, got)
}

type nopDisplay struct{}

func (nopDisplay) Show(session.Frame) error { return nil }

func TestFormatLessons(t *testing.T) {
	assert.Equal(t, "No lessons available.", FormatLessons(nil))
	out := FormatLessons(testHost(t).Catalogue.List())
	assert.Equal(t, "1. demo  ch.1  Demo (2 steps)", out)
}
