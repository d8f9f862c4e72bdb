package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C) or declined to
	// submit.
	ErrAborted = errors.New("tui: aborted")
	// ErrNoEngine is returned by New without an engine.
	ErrNoEngine = errors.New("tui: engine is required")
)
