package recording

import "errors"

var (
	// ErrSpawn indicates the detached recorder process could not be started.
	ErrSpawn = errors.New("failed to spawn recorder process")

	// ErrCapture indicates the input stream or the lossless file failed mid-session.
	ErrCapture = errors.New("capture failed")

	errCeilingReached = errors.New("safety ceiling reached")
)
