package domain

import "errors"

var (
	// ErrMissingPrerequisite is returned when a screen is entered before
	// an earlier step populated the state it depends on.
	ErrMissingPrerequisite = errors.New("prerequisite step not completed")
	// ErrInvalidAvatar is returned for an unknown avatar category.
	ErrInvalidAvatar = errors.New("unknown avatar category")
	// ErrJobFailed indicates the backend reported a failed generation job.
	ErrJobFailed = errors.New("video generation failed")
	// ErrQuizNotLoaded is returned when quiz operations run before a
	// question set was fetched.
	ErrQuizNotLoaded = errors.New("quiz questions not loaded")
	// ErrUnanswered is returned when the quiz is submitted with blank slots.
	ErrUnanswered = errors.New("not every question has been answered")
	// ErrPieceNotFound indicates the dragged piece is not in the pool.
	ErrPieceNotFound = errors.New("piece not available")
	// ErrSlotOccupied indicates the target slot already holds a piece.
	ErrSlotOccupied = errors.New("slot already filled")
	// ErrWrongSlot indicates the piece does not belong in the target slot.
	ErrWrongSlot = errors.New("piece does not belong in that slot")
)
