// Package countdown runs the session-wide quiz timer.
package countdown

import (
	"fmt"
	"sync"
	"time"
)

// SecondsPerQuestion is the default allowance each question adds to the session budget.
const SecondsPerQuestion = 30

// Scheduler runs fn every interval until the returned stop function is called.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// Controller sizes and starts countdowns.
type Controller struct {
	perQuestion int
	scheduler   Scheduler
}

func New(secondsPerQuestion int, scheduler Scheduler) *Controller {
	if secondsPerQuestion <= 0 {
		secondsPerQuestion = SecondsPerQuestion
	}
	return &Controller{perQuestion: secondsPerQuestion, scheduler: scheduler}
}

// Budget is the total number of seconds a run of questionCount questions gets.
func (c *Controller) Budget(questionCount int) int {
	return c.perQuestion * questionCount
}

// Start begins a countdown of Budget(questionCount) seconds. onTick receives the
// remaining seconds after every decrement; onExpire is called once when the
// budget is used up. Neither is called after Cancel.
func (c *Controller) Start(questionCount int, onTick func(remaining int), onExpire func()) *Handle {
	h := &Handle{
		remaining: c.Budget(questionCount),
		onTick:    onTick,
		onExpire:  onExpire,
	}
	stop := c.scheduler.Every(time.Second, h.tick)

	h.mu.Lock()
	h.stop = stop
	if h.stopped {
		h.mu.Unlock()
		stop()
		return h
	}
	h.mu.Unlock()
	return h
}

// Handle controls a single running countdown.
type Handle struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	expired   bool
	stop      func()
	onTick    func(int)
	onExpire  func()
}

func (h *Handle) tick() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	if h.remaining > 0 {
		h.remaining--
	}
	remaining := h.remaining
	expired := remaining == 0
	if expired {
		h.expired = true
		h.haltLocked()
	}
	h.mu.Unlock()

	if h.onTick != nil {
		h.onTick(remaining)
	}
	if expired && h.onExpire != nil {
		h.onExpire()
	}
}

// Cancel stops future ticks. It is safe to call more than once and never blocks
// on a tick in flight.
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.haltLocked()
}

func (h *Handle) haltLocked() {
	if h.stopped {
		return
	}
	h.stopped = true
	if h.stop != nil {
		h.stop()
	}
}

// Remaining returns the seconds left on the countdown.
func (h *Handle) Remaining() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remaining
}

// Expired reports whether the countdown ran out.
func (h *Handle) Expired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.expired
}

// Stopped reports whether the countdown no longer ticks.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Format renders seconds as MM:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
