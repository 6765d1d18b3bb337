package domain

import "errors"

var (
	// ErrUnauthorized is returned when a host command carries a bad admin key.
	ErrUnauthorized = errors.New("admin key invalid")

	// ErrRoomNotFound is returned for unknown room codes.
	ErrRoomNotFound = errors.New("room not found")
	// ErrQuestionSetNotFound indicates a named question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")

	// ErrInvalidQuestions is returned when no question list was supplied at all.
	ErrInvalidQuestions = errors.New("invalid questions")
	// ErrNoValidQuestions is returned when every supplied question was dropped by validation.
	ErrNoValidQuestions = errors.New("no valid questions")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrMissingUserID    = errors.New("missing user id")
	// ErrInvalidName is wrapped with the active name rule.
	ErrInvalidName = errors.New("invalid name")

	ErrNoQuestion          = errors.New("no question")
	ErrAlreadyStarted      = errors.New("already started")
	ErrAlreadyEnded        = errors.New("already ended")
	ErrNotAcceptingAnswers = errors.New("not accepting answers")
	ErrNotJoined           = errors.New("not joined")
	ErrAlreadyAnswered     = errors.New("already answered")
)

// IsAuthorization reports whether err is an admin key rejection.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound reports whether err refers to a missing room or question set.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrQuestionSetNotFound)
}

// IsValidation reports whether err rejects malformed input.
func IsValidation(err error) bool {
	for _, target := range []error{ErrInvalidQuestions, ErrNoValidQuestions, ErrInvalidChoice, ErrMissingUserID, ErrInvalidName} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsStateConflict reports whether err rejects a command that is not valid in the current lifecycle state.
func IsStateConflict(err error) bool {
	for _, target := range []error{ErrNoQuestion, ErrAlreadyStarted, ErrAlreadyEnded, ErrNotAcceptingAnswers, ErrNotJoined, ErrAlreadyAnswered} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
