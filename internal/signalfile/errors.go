package signalfile

import "errors"

var (
	// ErrSignalIO indicates a signal file could not be created, read or removed.
	ErrSignalIO = errors.New("signal file I/O failed")

	// ErrSessionActive indicates another live recorder owns the PID file.
	ErrSessionActive = errors.New("recording session already active")

	// ErrNoSession indicates no PID file is present.
	ErrNoSession = errors.New("no active recording session")
)
