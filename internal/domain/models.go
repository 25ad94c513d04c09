package domain

// Question is a multiple-choice question as delivered by the question source.
// CorrectOption indexes into Options.
type Question struct {
	Prompt        string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"min=1,dive,required"`
	CorrectOption int      `json:"correctOption" validate:"gte=0"`
	Points        int      `json:"points" validate:"gte=0"`
}

// TotalPoints sums the point values of a question set.
func TotalPoints(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}
