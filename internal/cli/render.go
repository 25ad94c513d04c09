package cli

import (
	"fmt"
	"io"
	"reflect"
	"sync"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/quiz"
)

// renderer prints snapshots for the terminal front end. Clock-only changes
// are printed as a short status line instead of a full redraw.
type renderer struct {
	mu   sync.Mutex
	out  io.Writer
	last *quiz.View
}

func (r *renderer) render(snap app.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last != nil && reflect.DeepEqual(*r.last, snap.View) {
		if snap.Status == quiz.StatusActive && (snap.RemainingSeconds%10 == 0 || snap.RemainingSeconds <= 5) {
			fmt.Fprintf(r.out, "  time left %s\n", snap.Clock)
		}
		return
	}
	view := snap.View
	r.last = &view
	fmt.Fprint(r.out, renderSnapshot(snap))
}

func (r *renderer) report(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "! %s\n", msg)
}

func renderSnapshot(snap app.Snapshot) string {
	switch snap.Status {
	case quiz.StatusNotStarted:
		return fmt.Sprintf("\n%d questions to test you (%s on the clock). Type s to start.\n",
			snap.QuestionCount, snap.Clock)
	case quiz.StatusFinished:
		if snap.Percentage == nil {
			return fmt.Sprintf("\nYou scored %d of %d points. Type r to restart.\n", snap.Score, snap.MaxScore)
		}
		return fmt.Sprintf("\nYou scored %d of %d points (%.0f%%). Type r to restart.\n",
			snap.Score, snap.MaxScore, *snap.Percentage)
	}

	if snap.Question == nil {
		return fmt.Sprintf("\nNo questions loaded. %s left.\n", snap.Clock)
	}
	s := fmt.Sprintf("\nQuestion %d/%d  score %d/%d  progress %d/%d  time %s\n%s\n",
		snap.CurrentIndex+1, snap.QuestionCount, snap.Score, snap.MaxScore,
		snap.Progress, snap.QuestionCount, snap.Clock, snap.Question.Prompt)
	for i, opt := range snap.Question.Options {
		mark := " "
		if snap.HasAnswered {
			switch {
			case snap.CorrectOption != nil && i == *snap.CorrectOption:
				mark = "+"
			case snap.Selected != nil && i == *snap.Selected:
				mark = "x"
			}
		}
		s += fmt.Sprintf(" %s %d) %s\n", mark, i+1, opt)
	}
	if snap.HasAnswered {
		if snap.CurrentIndex == snap.QuestionCount-1 {
			s += "Type n to finish.\n"
		} else {
			s += "Type n for the next question.\n"
		}
	}
	return s
}
