package audio

import "errors"

// ErrDeviceNotFound indicates no enumerated device matched the requested name and direction.
var ErrDeviceNotFound = errors.New("audio device not found")

// ErrEndpointUnavailable indicates the OS has no default endpoint for a role.
var ErrEndpointUnavailable = errors.New("audio endpoint unavailable")

// ErrClipUnreadable indicates a guidance clip is missing or cannot be decoded.
var ErrClipUnreadable = errors.New("audio clip unreadable")
