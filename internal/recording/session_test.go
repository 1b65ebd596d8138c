package recording

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/audiolibrelab/callguide/internal/audio"
)

func TestBaseName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	tests := []struct {
		callID string
		want   string
	}{
		{"", "recording_20240309_140507"},
		{"0312345678", "recording_20240309_140507_0312345678"},
		{"+81-3-1234", "recording_20240309_140507_+81-3-1234"},
		{"../../etc/passwd", "recording_20240309_140507_etcpasswd"},
		{"   ", "recording_20240309_140507"},
	}

	for _, tt := range tests {
		if got := baseName(at, tt.callID); got != tt.want {
			t.Errorf("baseName(%q) = %q, expected %q", tt.callID, got, tt.want)
		}
	}
}

func TestNewSession(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	dev := audio.Device{Name: "VoiceMeeter Output", MaxInputChannels: 1, DefaultSampleRate: 48000}

	s := newSession(dev, 2, "/rec", "42", time.Hour, at)

	if s.Channels != 1 {
		t.Errorf("Expected channels capped to 1, got %d", s.Channels)
	}
	if s.SampleRate != 48000 {
		t.Errorf("Expected device default rate 48000, got %d", s.SampleRate)
	}
	if s.WAVPath != filepath.Join("/rec", "recording_20240309_140507_42.wav") {
		t.Errorf("Unexpected WAV path: %s", s.WAVPath)
	}
	if s.MP3Path != filepath.Join("/rec", "recording_20240309_140507_42.mp3") {
		t.Errorf("Unexpected MP3 path: %s", s.MP3Path)
	}
	if s.ID == "" {
		t.Error("Expected a session id")
	}

	s = newSession(audio.Device{MaxInputChannels: 8, DefaultSampleRate: 44100}, 0, "/rec", "", time.Hour, at)
	if s.Channels != 2 {
		t.Errorf("Expected default of 2 channels, got %d", s.Channels)
	}
}
