package actions

import (
	"sync"
	"time"
)

// Level is the visual weight of a notice.
type Level int

const (
	LevelSuccess Level = iota + 1
	LevelWarning
	LevelError
)

// Notice is a transient message shown to the user.
type Notice struct {
	Level Level
	Text  string
}

// Notice texts.
const (
	TextCopied    = "Copied to clipboard"
	TextNoMessage = "No message found"
	TextFailed    = "Copy failed"
)

// Notifier shows notices.
type Notifier interface {
	Notify(n Notice)
}

// DefaultNoticeTTL is how long a notice stays visible.
const DefaultNoticeTTL = 2 * time.Second

// Toaster keeps the latest notice visible for a fixed interval. A newer notice
// replaces the current one and restarts the interval.
type Toaster struct {
	ttl time.Duration

	mu    sync.Mutex
	cur   *Notice
	gen   uint64
	timer *time.Timer
}

// NewToaster returns a Toaster; ttl <= 0 means DefaultNoticeTTL.
func NewToaster(ttl time.Duration) *Toaster {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Toaster{ttl: ttl}
}

// Notify implements Notifier.
func (t *Toaster) Notify(n Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.cur = &n
	t.timer = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen == gen {
			t.cur = nil
		}
	})
}

// Current returns the visible notice, if any.
func (t *Toaster) Current() (Notice, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return Notice{}, false
	}
	return *t.cur, true
}
