// Package reveal shows narration text one character at a time.
//
// A Revealer is owned by a single event loop. Its ticker runs in a pump
// goroutine that only forwards generation-stamped Tick values to the
// loop; all state changes happen in Apply, on the loop's goroutine. A new
// Start stops the previous pump and bumps the generation before anything
// else, so ticks from an earlier text are dropped even if they are
// already queued.
package reveal

import (
	"context"
	"time"
)

// DefaultDelay is the per-character cadence.
const DefaultDelay = 30 * time.Millisecond

// Tick asks the owning loop to reveal one more character of the text
// identified by Gen.
type Tick struct {
	Gen uint64
}

// Revealer produces a growing prefix of its current text.
type Revealer struct {
	clock Clock
	delay time.Duration
	out   chan<- Tick

	text    []rune
	shown   int
	gen     uint64
	running bool
	cancel  context.CancelFunc
}

// New returns a Revealer that sends ticks to out. A nil clock uses the
// system clock; a non-positive delay uses DefaultDelay.
func New(clock Clock, delay time.Duration, out chan<- Tick) *Revealer {
	if clock == nil {
		clock = SystemClock{}
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Revealer{clock: clock, delay: delay, out: out}
}

// Start begins revealing text from the empty prefix. Any reveal in
// progress is cancelled first. It reports whether a reveal was
// cancelled.
func (r *Revealer) Start(text string) (cancelled bool) {
	cancelled = r.stop()
	r.gen++
	r.text = []rune(text)
	r.shown = 0
	if len(r.text) == 0 {
		return cancelled
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	go pump(ctx, r.clock.NewTicker(r.delay), r.gen, r.out)
	return cancelled
}

// Apply reveals one character if t belongs to the current text. It
// reports whether the displayed prefix changed.
func (r *Revealer) Apply(t Tick) bool {
	if t.Gen != r.gen || !r.running {
		return false
	}
	r.shown++
	if r.shown >= len(r.text) {
		r.shown = len(r.text)
		r.stop()
	}
	return true
}

// Complete shows the whole text at once and stops the ticker.
func (r *Revealer) Complete() bool {
	if !r.running {
		return false
	}
	r.shown = len(r.text)
	r.stop()
	return true
}

// Stop cancels the reveal in progress, leaving the prefix as is.
func (r *Revealer) Stop() {
	r.stop()
	r.gen++
}

// Text returns the displayed prefix.
func (r *Revealer) Text() string { return string(r.text[:r.shown]) }

// Full returns the text being revealed.
func (r *Revealer) Full() string { return string(r.text) }

// Revealing reports whether characters remain to be shown.
func (r *Revealer) Revealing() bool { return r.running }

// Generation identifies the current text.
func (r *Revealer) Generation() uint64 { return r.gen }

func (r *Revealer) stop() bool {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	was := r.running
	r.running = false
	return was
}

func pump(ctx context.Context, t Ticker, gen uint64, out chan<- Tick) {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			select {
			case out <- Tick{Gen: gen}:
			case <-ctx.Done():
				return
			}
		}
	}
}
