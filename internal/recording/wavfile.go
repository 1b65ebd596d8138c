package recording

import (
	"errors"
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavWriter appends 16-bit PCM chunks delivered by the capture callback.
// The first write error is kept and reported once through onError.
type wavWriter struct {
	mu       sync.Mutex
	f        *os.File
	enc      *wav.Encoder
	buf      *goaudio.IntBuffer
	channels int
	frames   int64
	err      error
	closed   bool
	onError  func(error)
}

func createWAV(path string, sampleRate, channels int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	return &wavWriter{
		f:        f,
		enc:      wav.NewEncoder(f, sampleRate, 16, channels, 1),
		channels: channels,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// Write is the capture callback
func (w *wavWriter) Write(samples []int16) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.err != nil || len(samples) == 0 {
		return
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(s)
	}

	if err := w.enc.Write(w.buf); err != nil {
		w.err = fmt.Errorf("write WAV data: %w: %v", ErrCapture, err)
		if w.onError != nil {
			w.onError(w.err)
		}
		return
	}
	w.frames += int64(len(samples) / w.channels)
}

func (w *wavWriter) Frames() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close finalizes the header and closes the file. Safe to call twice.
func (w *wavWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	encErr := w.enc.Close()
	return errors.Join(encErr, w.f.Close())
}
