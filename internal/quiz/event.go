package quiz

import "timed-quiz-service/internal/domain"

// Event is one of the discrete inputs accepted by Transition. The set is closed:
// only the types declared in this file implement it.
type Event interface {
	isEvent()
	// Name identifies the event in logs and metrics.
	Name() string
}

// DataLoaded replaces the question set without touching the status.
type DataLoaded struct {
	Questions []domain.Question
}

// Start moves a not-yet-started quiz to active.
type Start struct{}

// AnswerSelected picks an option for the current question.
type AnswerSelected struct {
	Index int
}

// Advance moves past an answered question, finishing the quiz after the last one.
type Advance struct{}

// Restart returns to not_started, keeping the loaded questions.
type Restart struct{}

// TimerExpired ends an active quiz regardless of progress.
type TimerExpired struct{}

func (DataLoaded) isEvent()     {}
func (Start) isEvent()          {}
func (AnswerSelected) isEvent() {}
func (Advance) isEvent()        {}
func (Restart) isEvent()        {}
func (TimerExpired) isEvent()   {}

func (DataLoaded) Name() string     { return "data_loaded" }
func (Start) Name() string          { return "start" }
func (AnswerSelected) Name() string { return "answer_selected" }
func (Advance) Name() string        { return "advance" }
func (Restart) Name() string        { return "restart" }
func (TimerExpired) Name() string   { return "timer_expired" }

// LoadData builds a DataLoaded event for a freshly fetched question set.
func LoadData(questions []domain.Question) Event { return DataLoaded{Questions: questions} }

// StartQuiz builds a Start event.
func StartQuiz() Event { return Start{} }

// SelectAnswer builds an AnswerSelected event for the option at index.
func SelectAnswer(index int) Event { return AnswerSelected{Index: index} }

// Next builds an Advance event.
func Next() Event { return Advance{} }

// RestartQuiz builds a Restart event.
func RestartQuiz() Event { return Restart{} }

// ExpireTimer builds the TimerExpired event the countdown delivers.
func ExpireTimer() Event { return TimerExpired{} }
