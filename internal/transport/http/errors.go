package http

import "errors"

var (
	errInvalidAnswer = errors.New("invalid answer payload")
	errUnsupported   = errors.New("unsupported message type")
)
