package barcode

import (
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the silence after which a burst is considered finished.
	// Scanners emit characters 10-30ms apart; people rarely type faster than this.
	DefaultTimeout = 150 * time.Millisecond
	// DefaultMinLength is the shortest burst accepted as a scan.
	DefaultMinLength = 3
)

// Focus describes what had keyboard focus when a key event was produced.
type Focus int

const (
	// FocusNone means no input field had focus.
	FocusNone Focus = iota
	// FocusTextInput is an ordinary text field; its keystrokes belong to the user.
	FocusTextInput
	// FocusBarcodeInput is a field flagged as a barcode capture target.
	FocusBarcodeInput
)

// ParseFocus maps a wire value onto a Focus.
func ParseFocus(value string) Focus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "text", "input", "textarea":
		return FocusTextInput
	case "barcode", "scan", "scanner":
		return FocusBarcodeInput
	default:
		return FocusNone
	}
}

// KeyEvent is a single keydown delivered by the platform keyboard layer.
type KeyEvent struct {
	Key   string
	At    time.Time
	Focus Focus
	Ctrl  bool
	Alt   bool
	Meta  bool
}

// Terminator records how a scan was completed.
type Terminator string

const (
	TerminatorEnter   Terminator = "enter"
	TerminatorTab     Terminator = "tab"
	TerminatorTimeout Terminator = "timeout"
)

// ScanEvent is emitted once per completed scanner burst.
type ScanEvent struct {
	RawCode    string
	Candidates []string
	Terminator Terminator
	At         time.Time
}

// DiscardReason explains why a buffered burst was dropped.
type DiscardReason string

const (
	DiscardTooShort     DiscardReason = "too_short"
	DiscardModified     DiscardReason = "modified"
	DiscardNonPrintable DiscardReason = "non_printable"
	DiscardMalformed    DiscardReason = "malformed"
	DiscardFocusLost    DiscardReason = "focus_lost"
)

// State is the classifier state.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateCompleted
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateCompleted:
		return "completed"
	case StateDiscarded:
		return "discarded"
	default:
		return "idle"
	}
}

// Config configures a Classifier.
type Config struct {
	Timeout   time.Duration
	MinLength int
	Scheduler Scheduler
	Logger    zerolog.Logger
	OnScan    func(ScanEvent)
	OnDiscard func(raw string, reason DiscardReason)
}

// Classifier separates scanner bursts from human typing.
type Classifier struct {
	timeout   time.Duration
	minLength int
	scheduler Scheduler
	logger    zerolog.Logger
	onScan    func(ScanEvent)
	onDiscard func(string, DiscardReason)

	mu     sync.Mutex
	state  State
	buf    []rune
	last   time.Time
	timer  Timer
	gen    uint64
	closed bool
}

// New constructs a Classifier. Zero values fall back to the package defaults.
func New(cfg Config) *Classifier {
	c := &Classifier{
		timeout:   cfg.Timeout,
		minLength: cfg.MinLength,
		scheduler: cfg.Scheduler,
		logger:    cfg.Logger,
		onScan:    cfg.OnScan,
		onDiscard: cfg.OnDiscard,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.minLength <= 0 {
		c.minLength = DefaultMinLength
	}
	if c.scheduler == nil {
		c.scheduler = RealScheduler{}
	}
	return c
}

// State returns the steady state (idle or accumulating).
func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Buffered returns the characters captured so far.
func (c *Classifier) Buffered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

// HandleKey feeds one key event. Events must arrive in chronological order.
func (c *Classifier) HandleKey(ev KeyEvent) {
	c.mu.Lock()
	if c.closed || ev.Focus == FocusTextInput {
		c.mu.Unlock()
		return
	}
	var out []func()
	switch {
	case ev.At.IsZero() || ev.Key == "" || (!c.last.IsZero() && ev.At.Before(c.last)):
		out = append(out, c.discardLocked(DiscardMalformed))
	case isModifierKey(ev.Key):
		// scanners wrap uppercase characters in Shift presses
	case ev.Ctrl || ev.Alt || ev.Meta:
		out = append(out, c.discardLocked(DiscardModified))
	case ev.Key == "Enter" || ev.Key == "Tab":
		term := TerminatorEnter
		if ev.Key == "Tab" {
			term = TerminatorTab
		}
		out = append(out, c.finishLocked(term, ev.At))
	case isPrintable(ev.Key):
		if c.state == StateAccumulating && ev.At.Sub(c.last) > c.timeout {
			out = append(out, c.finishLocked(TerminatorTimeout, c.last.Add(c.timeout)))
		}
		c.buf = append(c.buf, []rune(ev.Key)...)
		c.state = StateAccumulating
		c.last = ev.At
		c.armLocked()
	default:
		out = append(out, c.discardLocked(DiscardNonPrintable))
	}
	c.mu.Unlock()
	dispatch(out)
}

// Blur reports that focus left the page or the capture field.
func (c *Classifier) Blur() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn := c.discardLocked(DiscardFocusLost)
	c.mu.Unlock()
	dispatch([]func(){fn})
}

// Close cancels any pending timeout. No events are emitted afterwards.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.closed = true
}

func (c *Classifier) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.scheduler.AfterFunc(c.timeout, func() { c.fire(gen) })
}

func (c *Classifier) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != StateAccumulating {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	fn := c.finishLocked(TerminatorTimeout, c.last.Add(c.timeout))
	c.mu.Unlock()
	dispatch([]func(){fn})
}

// finishLocked completes the burst when long enough and discards it otherwise.
func (c *Classifier) finishLocked(term Terminator, at time.Time) func() {
	if len(c.buf) < c.minLength {
		return c.discardLocked(DiscardTooShort)
	}
	raw := string(c.buf)
	event := ScanEvent{RawCode: raw, Candidates: Candidates(raw), Terminator: term, At: at}
	c.logger.Debug().
		Stringer("state", StateCompleted).
		Str("code", raw).
		Str("terminator", string(term)).
		Msg("barcode scan")
	c.resetLocked()
	onScan := c.onScan
	return func() {
		if onScan != nil {
			onScan(event)
		}
	}
}

func (c *Classifier) discardLocked(reason DiscardReason) func() {
	if len(c.buf) == 0 {
		c.resetLocked()
		return nil
	}
	raw := string(c.buf)
	c.logger.Debug().
		Stringer("state", StateDiscarded).
		Str("buffer", raw).
		Str("reason", string(reason)).
		Msg("barcode burst discarded")
	c.resetLocked()
	onDiscard := c.onDiscard
	return func() {
		if onDiscard != nil {
			onDiscard(raw, reason)
		}
	}
}

func (c *Classifier) resetLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.buf = c.buf[:0]
	c.state = StateIdle
}

func dispatch(fns []func()) {
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

func isPrintable(key string) bool {
	if utf8.RuneCountInString(key) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(key)
	return unicode.IsPrint(r)
}

func isModifierKey(key string) bool {
	switch key {
	case "Shift", "Control", "Alt", "AltGraph", "Meta", "CapsLock":
		return true
	}
	return false
}
