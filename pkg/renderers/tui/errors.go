package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrInvalid is returned when the form still fails to submit and the
	// renderer cannot ask again.
	ErrInvalid = errors.New("tui: form still invalid")
)
