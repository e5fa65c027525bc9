package historyquiz

import "errors"

var (
	// ErrNotFound is returned by a Storage when the key holds no value, and
	// by the controller for an unknown question id.
	ErrNotFound = errors.New("not found")

	// ErrNoResponse is returned when the model produced no usable output.
	ErrNoResponse = errors.New("no response")

	// ErrIncompleteSubmission is returned when submitting with unanswered questions.
	ErrIncompleteSubmission = errors.New("all questions must be answered before submitting")

	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidConfig wraps validation failures of QuizConfig and LLMConfig.
	ErrInvalidConfig = errors.New("invalid configuration")
)
