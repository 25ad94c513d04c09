package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/countdown"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/events"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/metrics"
	"timed-quiz-service/internal/quiz"
)

func TestCompleteRunCancelsCountdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.open(t, "videogames")
	_, err := h.service.Start(ctx, id)
	require.NoError(t, err)
	require.Len(t, h.sched.schedules(), 1)

	snap, err := h.service.Answer(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Score)

	_, err = h.service.Advance(ctx, id)
	require.NoError(t, err)
	snap, err = h.service.Answer(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Score)

	snap, err = h.service.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusFinished, snap.Status)
	assert.Equal(t, 30, snap.MaxScore)
	require.NotNil(t, snap.Percentage)
	assert.InDelta(t, 33.33, *snap.Percentage, 0.01)

	assert.True(t, h.sched.schedules()[0].isStopped())
	assert.Equal(t, 0, h.recorder.finished(metrics.ReasonExpired))
	assert.Equal(t, 1, h.recorder.finished(metrics.ReasonCompleted))
}

func TestCountdownExpiryFinishesQuizOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.open(t, "videogames")
	snap, err := h.service.Start(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 60, snap.RemainingSeconds)
	assert.Equal(t, "01:00", snap.Clock)

	tick := h.sched.schedules()[0]
	assert.Equal(t, 59, tick.fire(59))
	snap, _ = h.service.Snapshot(ctx, id)
	assert.Equal(t, quiz.StatusActive, snap.Status)
	assert.Equal(t, "00:01", snap.Clock)

	assert.Equal(t, 1, tick.fire(10))
	snap, _ = h.service.Snapshot(ctx, id)
	assert.Equal(t, quiz.StatusFinished, snap.Status)
	assert.Equal(t, 0, snap.RemainingSeconds)
	assert.Equal(t, 1, h.recorder.finished(metrics.ReasonExpired))
}

func TestRestartStopsCountdownAndNewRunGetsFreshBudget(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.open(t, "videogames")
	_, _ = h.service.Start(ctx, id)
	first := h.sched.schedules()[0]
	first.fire(30)

	snap, err := h.service.Restart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusNotStarted, snap.Status)
	assert.True(t, first.isStopped())

	snap, _ = h.service.Start(ctx, id)
	assert.Equal(t, 60, snap.RemainingSeconds)
	require.Len(t, h.sched.schedules(), 2)

	// A late tick from the first run must not touch the second.
	first.forceFire()
	snap, _ = h.service.Snapshot(ctx, id)
	assert.Equal(t, quiz.StatusActive, snap.Status)
	assert.Equal(t, 60, snap.RemainingSeconds)
}

func TestLoadFailureIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t)

	id := app.NewSessionID()
	reports, err := h.bus.Subscribe(ctx, id)
	require.NoError(t, err)

	_, err = h.service.Open(ctx, id, "missing")
	require.NoError(t, err)
	h.service.WaitForLoads()

	select {
	case r := <-reports:
		assert.Equal(t, events.KindLoadFailed, r.Kind)
		assert.Contains(t, r.Message, domain.ErrQuestionSetNotFound.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("expected a load failure report")
	}

	snap, err := h.service.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusNotStarted, snap.Status)
	assert.Equal(t, 0, snap.QuestionCount)
	assert.Nil(t, snap.Percentage)
	assert.Equal(t, 1, h.recorder.loadFailures())
}

func TestInvalidQuestionSetIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t)

	id := app.NewSessionID()
	reports, err := h.bus.Subscribe(ctx, id)
	require.NoError(t, err)

	_, err = h.service.Open(ctx, id, "broken")
	require.NoError(t, err)
	h.service.WaitForLoads()

	select {
	case r := <-reports:
		assert.Contains(t, r.Message, domain.ErrInvalidQuestionSet.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("expected a validation report")
	}
	snap, _ := h.service.Snapshot(ctx, id)
	assert.Equal(t, 0, snap.QuestionCount)
}

func TestClosingOneSessionDoesNotFailSharedLoad(t *testing.T) {
	ctx := context.Background()
	loader := newGatedLoader(videogameQuestions())
	h := newHarnessWithLoader(t, loader)

	first, err := h.service.Open(ctx, "", "videogames")
	require.NoError(t, err)
	<-loader.started

	second := app.NewSessionID()
	reports, err := h.bus.Subscribe(ctx, second)
	require.NoError(t, err)
	_, err = h.service.Open(ctx, second, "videogames")
	require.NoError(t, err)

	h.service.Close(ctx, first.ID())
	close(loader.release)
	h.service.WaitForLoads()

	snap, err := h.service.Snapshot(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.QuestionCount)
	assert.Equal(t, quiz.StatusNotStarted, snap.Status)
	assert.Equal(t, 0, h.recorder.loadFailures())
	assert.Equal(t, 1, loader.callCount())
	select {
	case r := <-reports:
		t.Fatalf("unexpected report %q", r.Message)
	default:
	}
}

func TestAnswerOutOfRangeRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.open(t, "videogames")
	_, _ = h.service.Start(ctx, id)

	snap, err := h.service.Answer(ctx, id, 7)
	require.True(t, errors.Is(err, domain.ErrOptionOutOfRange))
	assert.False(t, snap.HasAnswered)
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.service.Start(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = h.service.Answer(ctx, "nope", 0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, _, err = h.service.Subscribe(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSubscribeReceivesTicks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.open(t, "videogames")
	updates, cancel, err := h.service.Subscribe(ctx, id)
	require.NoError(t, err)
	defer cancel()

	initial := <-updates
	assert.Equal(t, quiz.StatusNotStarted, initial.Status)
	assert.Equal(t, 2, initial.QuestionCount)

	_, _ = h.service.Start(ctx, id)
	started := <-updates
	assert.Equal(t, quiz.StatusActive, started.Status)

	h.sched.schedules()[0].fire(1)
	ticked := <-updates
	assert.Equal(t, 59, ticked.RemainingSeconds)
	assert.Equal(t, "00:59", ticked.Clock)
}

func TestCloseCancelsCountdownAndSubscriptions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.open(t, "videogames")
	updates, _, err := h.service.Subscribe(ctx, id)
	require.NoError(t, err)
	_, _ = h.service.Start(ctx, id)

	h.service.Close(ctx, id)
	assert.True(t, h.sched.schedules()[0].isStopped())

	for range updates {
	}
	_, err = h.service.Snapshot(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type harness struct {
	service  *app.QuizService
	bus      *events.Bus
	sched    *manualScheduler
	recorder *countingRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLoader(t, memory.NewStaticQuestionLoader(map[string][]domain.Question{
		"videogames": videogameQuestions(),
		"broken": {
			{Prompt: "Bad", Options: []string{"only"}, CorrectOption: 3, Points: 1},
		},
	}))
}

func videogameQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "Which company made the NES?", Options: []string{"Sega", "Nintendo", "Sony"}, CorrectOption: 1, Points: 10},
		{Prompt: "Who is Mario's brother?", Options: []string{"Luigi", "Wario"}, CorrectOption: 0, Points: 20},
	}
}

func newHarnessWithLoader(t *testing.T, loader memory.QuestionLoader) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(logger)
	t.Cleanup(func() { _ = bus.Close() })

	sched := &manualScheduler{}
	recorder := &countingRecorder{finishes: map[string]int{}}
	service := app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewQuestionRepository(loader, time.Minute),
		countdown.New(30, sched),
		bus,
		app.WithLogger(logger),
		app.WithRecorder(recorder),
	)
	return &harness{service: service, bus: bus, sched: sched, recorder: recorder}
}

func (h *harness) open(t *testing.T, setID string) string {
	t.Helper()
	game, err := h.service.Open(context.Background(), "", setID)
	require.NoError(t, err)
	h.service.WaitForLoads()
	return game.ID()
}

type manualScheduler struct {
	mu   sync.Mutex
	runs []*manualSchedule
}

func (s *manualScheduler) Every(_ time.Duration, fn func()) func() {
	run := &manualSchedule{fn: fn}
	s.mu.Lock()
	s.runs = append(s.runs, run)
	s.mu.Unlock()
	return run.stop
}

func (s *manualScheduler) schedules() []*manualSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*manualSchedule(nil), s.runs...)
}

type manualSchedule struct {
	mu      sync.Mutex
	fn      func()
	stopped bool
}

func (r *manualSchedule) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

func (r *manualSchedule) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// fire delivers up to n ticks, stopping once the schedule has been stopped.
func (r *manualSchedule) fire(n int) int {
	delivered := 0
	for i := 0; i < n && !r.isStopped(); i++ {
		r.fn()
		delivered++
	}
	return delivered
}

// forceFire delivers a tick even after stop, like a timer that raced its cancellation.
func (r *manualSchedule) forceFire() {
	r.fn()
}

// gatedLoader blocks every load until release is closed or the load's
// context is cancelled.
type gatedLoader struct {
	questions []domain.Question
	started   chan struct{}
	release   chan struct{}
	once      sync.Once

	mu    sync.Mutex
	calls int
}

func newGatedLoader(questions []domain.Question) *gatedLoader {
	return &gatedLoader{
		questions: questions,
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (l *gatedLoader) LoadQuestions(ctx context.Context, _ string) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	l.once.Do(func() { close(l.started) })

	select {
	case <-l.release:
		return l.questions, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *gatedLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type countingRecorder struct {
	mu       sync.Mutex
	failures int
	finishes map[string]int
}

func (r *countingRecorder) SessionOpened() {}
func (r *countingRecorder) RunStarted()    {}

func (r *countingRecorder) LoadFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *countingRecorder) RunFinished(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes[reason]++
}

func (r *countingRecorder) loadFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

func (r *countingRecorder) finished(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishes[reason]
}
