package quiz

// QuestionView is the part of the current question a renderer may show.
type QuestionView struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// View is a render-ready snapshot of a State.
type View struct {
	Status        Status        `json:"status"`
	QuestionCount int           `json:"questionCount"`
	CurrentIndex  int           `json:"currentIndex"`
	Question      *QuestionView `json:"question,omitempty"`
	Selected      *int          `json:"selectedOption,omitempty"`
	CorrectOption *int          `json:"correctOption,omitempty"`
	HasAnswered   bool          `json:"hasAnswered"`
	Progress      int           `json:"progress"`
	Score         int           `json:"score"`
	MaxScore      int           `json:"maxScore"`
	Percentage    *float64      `json:"percentage,omitempty"`
}

// View builds the snapshot. The correct option is only revealed once the
// current question has been answered.
func (s State) View() View {
	v := View{
		Status:        s.Status,
		QuestionCount: len(s.Questions),
		CurrentIndex:  s.CurrentIndex,
		HasAnswered:   s.HasAnswered(),
		Progress:      s.ProgressValue(),
		Score:         s.Score,
		MaxScore:      s.MaxScore(),
	}
	if pct, ok := s.Percentage(); ok {
		v.Percentage = &pct
	}
	if s.Status != StatusActive {
		return v
	}
	q, ok := s.Current()
	if !ok {
		return v
	}
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	v.Question = &QuestionView{Prompt: q.Prompt, Options: options}
	if s.Selected != nil {
		selected := *s.Selected
		correct := q.CorrectOption
		v.Selected = &selected
		v.CorrectOption = &correct
	}
	return v
}
