package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(Question)
		if q.CorrectOption >= len(q.Options) {
			sl.ReportError(q.CorrectOption, "CorrectOption", "correctOption", "ltoptions", "")
		}
	}, Question{})
	return v
}

// ValidateQuestions checks every record of a question set. An empty set is valid.
func ValidateQuestions(questions []Question) error {
	for i := range questions {
		if err := validate.Struct(questions[i]); err != nil {
			return fmt.Errorf("%w: question %d: %v", ErrInvalidQuestionSet, i, err)
		}
	}
	return nil
}
