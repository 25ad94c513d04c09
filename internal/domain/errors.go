package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a play session has not been opened.
	ErrSessionNotFound = errors.New("play session not found")
	// ErrQuestionSetNotFound indicates the question set could not be located at any source.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrInvalidQuestionSet indicates the fetched document violates the question invariants.
	ErrInvalidQuestionSet = errors.New("invalid question set")
	// ErrOptionOutOfRange indicates a selected option index is not valid for the current question.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrSourceStatus indicates the remote question source answered with a non-success status.
	ErrSourceStatus = errors.New("unexpected question source status")
)
