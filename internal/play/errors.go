package play

import "errors"

// ErrPlayback indicates an output stream failed to open or to play to completion.
var ErrPlayback = errors.New("playback failed")
