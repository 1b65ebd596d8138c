package recording

import (
	"errors"
	"fmt"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/gordonklaus/portaudio"
)

// Stream is an open, running input stream
type Stream interface {
	Close() error
}

// Capturer opens an input stream that delivers interleaved int16 chunks to
// onData from the audio driver's thread.
type Capturer interface {
	Open(dev audio.Device, sampleRate, channels int, onData func([]int16)) (Stream, error)
}

// PortAudioCapturer captures through PortAudio callback streams.
// PortAudio must be initialized by the caller.
type PortAudioCapturer struct{}

var _ Capturer = PortAudioCapturer{}

func (PortAudioCapturer) Open(dev audio.Device, sampleRate, channels int, onData func([]int16)) (Stream, error) {
	info, err := audio.LookupPortAudio(dev)
	if err != nil {
		return nil, err
	}

	params := portaudio.HighLatencyParameters(info, nil)
	params.Input.Channels = channels
	params.SampleRate = float64(sampleRate)

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		onData(in)
	})
	if err != nil {
		return nil, fmt.Errorf("open input stream on %s: %w: %v", dev, ErrCapture, err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start input stream on %s: %w: %v", dev, ErrCapture, err)
	}
	return &portAudioStream{stream: stream}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Close() error {
	return errors.Join(s.stream.Stop(), s.stream.Close())
}
