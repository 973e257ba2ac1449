package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced user, medication or intake does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyTaken is returned when an action targets an intake that is already taken.
	ErrAlreadyTaken = errors.New("intake already taken")
	// ErrConflict is returned when a conditional update keeps losing to concurrent writers.
	ErrConflict = errors.New("concurrent update")

	ErrInvalidTime     = errors.New("invalid time of day")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrInvalidZone     = errors.New("invalid timezone")
)
