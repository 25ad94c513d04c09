// Package quiz holds the quiz progression state and the transition function that drives it.
package quiz

import "timed-quiz-service/internal/domain"

// Status is the lifecycle phase of a quiz run.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusFinished   Status = "finished"
)

// State is the full progression state of one quiz run.
// Selected is nil until the current question has been answered.
type State struct {
	Questions    []domain.Question
	CurrentIndex int
	Selected     *int
	Score        int
	Status       Status
}

// NewState returns the empty state that exists before any data arrives.
func NewState() State {
	return State{Status: StatusNotStarted}
}

// Transition applies e to s and returns the next state. It is total: any event
// that does not apply to the current state leaves it unchanged.
func Transition(s State, e Event) State {
	switch ev := e.(type) {
	case DataLoaded:
		s.Questions = ev.Questions
	case Start:
		if s.Status == StatusNotStarted {
			s.Status = StatusActive
		}
	case AnswerSelected:
		q, ok := s.Current()
		if !ok || s.Status != StatusActive || s.Selected != nil {
			return s
		}
		if ev.Index < 0 || ev.Index >= len(q.Options) {
			return s
		}
		idx := ev.Index
		s.Selected = &idx
		if idx == q.CorrectOption {
			s.Score += q.Points
		}
	case Advance:
		if s.Status != StatusActive || s.Selected == nil {
			return s
		}
		s.Selected = nil
		if s.CurrentIndex >= len(s.Questions)-1 {
			s.Status = StatusFinished
			s.CurrentIndex = 0
		} else {
			s.CurrentIndex++
		}
	case Restart:
		s.Score = 0
		s.CurrentIndex = 0
		s.Selected = nil
		s.Status = StatusNotStarted
	case TimerExpired:
		if s.Status == StatusActive {
			s.Status = StatusFinished
		}
	}
	return s
}

// Current returns the question at CurrentIndex, if there is one.
func (s State) Current() (domain.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// MaxScore is the sum of all question points.
func (s State) MaxScore() int {
	return domain.TotalPoints(s.Questions)
}

// Percentage returns Score as a percentage of MaxScore. The second result is
// false when MaxScore is zero and no percentage should be shown.
func (s State) Percentage() (float64, bool) {
	maxScore := s.MaxScore()
	if maxScore == 0 {
		return 0, false
	}
	return float64(s.Score) / float64(maxScore) * 100, true
}

// HasAnswered reports whether the current question has a selected option.
func (s State) HasAnswered() bool {
	return s.Selected != nil
}

// ProgressValue is the number of questions the player has dealt with so far.
func (s State) ProgressValue() int {
	if s.HasAnswered() {
		return s.CurrentIndex + 1
	}
	return s.CurrentIndex
}
