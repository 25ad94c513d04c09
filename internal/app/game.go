package app

import (
	"log/slog"
	"sync"

	"timed-quiz-service/internal/countdown"
	"timed-quiz-service/internal/metrics"
	"timed-quiz-service/internal/quiz"
)

// Snapshot is what rendering boundaries receive after every change.
type Snapshot struct {
	SessionID string `json:"sessionId"`
	quiz.View
	RemainingSeconds int    `json:"remainingSeconds"`
	Clock            string `json:"clock"`
}

// Game owns the quiz state of one play session. Every event is applied under a
// single lock, and the countdown is started and cancelled as the status moves
// in and out of active.
type Game struct {
	id       string
	timer    *countdown.Controller
	recorder metrics.Recorder
	logger   *slog.Logger

	mu          sync.Mutex
	state       quiz.State
	handle      *countdown.Handle
	generation  int
	remaining   int
	closed      bool
	subscribers map[chan Snapshot]struct{}
}

// NewGame creates a game in the not_started state with no questions.
func NewGame(id string, timer *countdown.Controller, recorder metrics.Recorder, logger *slog.Logger) *Game {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{
		id:          id,
		timer:       timer,
		recorder:    recorder,
		logger:      logger.With("session_id", id),
		state:       quiz.NewState(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

func (g *Game) ID() string {
	return g.id
}

// Dispatch applies e and returns the resulting snapshot.
func (g *Game) Dispatch(e quiz.Event) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return g.snapshotLocked()
	}
	return g.applyLocked(e)
}

// Snapshot returns the current snapshot without changing anything.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Close cancels the countdown and closes every subscription.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.stopTimerLocked()
	for ch := range g.subscribers {
		delete(g.subscribers, ch)
		close(ch)
	}
}

func (g *Game) applyLocked(e quiz.Event) Snapshot {
	prev := g.state.Status
	g.state = quiz.Transition(g.state, e)
	next := g.state.Status

	switch {
	case prev != quiz.StatusActive && next == quiz.StatusActive:
		g.startTimerLocked()
		g.recorder.RunStarted()
	case prev == quiz.StatusActive && next != quiz.StatusActive:
		g.stopTimerLocked()
		if next == quiz.StatusFinished {
			reason := metrics.ReasonCompleted
			if _, ok := e.(quiz.TimerExpired); ok {
				reason = metrics.ReasonExpired
			}
			g.recorder.RunFinished(reason)
			g.logger.Info("quiz finished", "reason", reason, "score", g.state.Score, "max_score", g.state.MaxScore())
		}
	}
	g.logger.Debug("event applied", "event", e.Name(), "from", prev, "to", next)
	return g.broadcastLocked()
}

func (g *Game) startTimerLocked() {
	g.stopTimerLocked()
	gen := g.generation
	questions := len(g.state.Questions)
	g.remaining = g.timer.Budget(questions)
	g.handle = g.timer.Start(questions,
		func(remaining int) { g.onTick(gen, remaining) },
		func() { g.onExpire(gen) },
	)
}

// stopTimerLocked cancels the running countdown. Bumping the generation makes
// any callback already in flight from the old handle a no-op.
func (g *Game) stopTimerLocked() {
	if g.handle != nil {
		g.handle.Cancel()
		g.handle = nil
	}
	g.generation++
}

func (g *Game) onTick(gen, remaining int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || gen != g.generation {
		return
	}
	g.remaining = remaining
	g.broadcastLocked()
}

func (g *Game) onExpire(gen int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || gen != g.generation {
		return
	}
	g.applyLocked(quiz.ExpireTimer())
}

func (g *Game) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	g.subscribers[ch] = struct{}{}
	ch <- g.snapshotLocked()
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		if _, ok := g.subscribers[ch]; ok {
			delete(g.subscribers, ch)
			close(ch)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

func (g *Game) broadcastLocked() Snapshot {
	snap := g.snapshotLocked()
	for ch := range g.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow reader: drop its oldest snapshot, the new one supersedes it.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (g *Game) snapshotLocked() Snapshot {
	remaining := g.remaining
	if g.state.Status == quiz.StatusNotStarted {
		remaining = g.timer.Budget(len(g.state.Questions))
	}
	return Snapshot{
		SessionID:        g.id,
		View:             g.state.View(),
		RemainingSeconds: remaining,
		Clock:            countdown.Format(remaining),
	}
}
