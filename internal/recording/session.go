package recording

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/google/uuid"
)

// State is a recorder lifecycle phase
type State string

const (
	StateIdle      State = "IDLE"
	StateStarting  State = "STARTING"
	StateCapturing State = "CAPTURING"
	StateStopping  State = "STOPPING"
	StateEncoding  State = "ENCODING"
	StateCleanup   State = "CLEANUP"
	StateExited    State = "EXITED"
)

// StopReason records which condition ended capture
type StopReason string

const (
	ReasonStopFile  StopReason = "stop_file"
	ReasonCeiling   StopReason = "ceiling"
	ReasonInterrupt StopReason = "interrupt"
	ReasonError     StopReason = "error"
)

// Session is the state of one recording, fixed once STARTING completes.
type Session struct {
	ID         string
	CallID     string
	Device     audio.Device
	Channels   int
	SampleRate int
	WAVPath    string
	MP3Path    string
	StartedAt  time.Time
	Ceiling    time.Duration
}

// Result describes how a session ended
type Result struct {
	Session
	Reason    StopReason
	Elapsed   time.Duration
	Frames    int64
	Encoded   bool
	EncodeErr error
}

func newSession(dev audio.Device, requestedChannels int, outputFolder, callID string, ceiling time.Duration, now time.Time) *Session {
	channels := requestedChannels
	if channels <= 0 {
		channels = 2
	}
	if dev.MaxInputChannels > 0 && dev.MaxInputChannels < channels {
		channels = dev.MaxInputChannels
	}

	base := baseName(now, callID)
	return &Session{
		ID:         uuid.NewString(),
		CallID:     callID,
		Device:     dev,
		Channels:   channels,
		SampleRate: int(dev.DefaultSampleRate),
		WAVPath:    filepath.Join(outputFolder, base+".wav"),
		MP3Path:    filepath.Join(outputFolder, base+".mp3"),
		StartedAt:  now,
		Ceiling:    ceiling,
	}
}

// baseName builds recording_<YYYYmmdd_HHMMSS>[_<id>]
func baseName(now time.Time, callID string) string {
	name := fmt.Sprintf("recording_%s", now.Format("20060102_150405"))
	if id := cleanCallID(callID); id != "" {
		name += "_" + id
	}
	return name
}

// cleanCallID keeps characters that are safe in a file name on every platform
func cleanCallID(id string) string {
	var result strings.Builder
	for _, r := range strings.TrimSpace(id) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '+' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
