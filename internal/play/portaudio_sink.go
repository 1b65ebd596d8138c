package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// PortAudioSink plays buffers through blocking PortAudio output streams.
// PortAudio must be initialized by the caller.
type PortAudioSink struct{}

var _ Sink = PortAudioSink{}

// Play writes buf to dev in chunks, blocking until the last chunk is queued
// and the stream has drained.
func (PortAudioSink) Play(ctx context.Context, buf *audio.Buffer, dev audio.Device) error {
	info, err := audio.LookupPortAudio(dev)
	if err != nil {
		return err
	}

	channels := buf.Channels
	if dev.MaxOutputChannels > 0 && channels > dev.MaxOutputChannels {
		channels = dev.MaxOutputChannels
	}

	params := portaudio.HighLatencyParameters(nil, info)
	params.Output.Channels = channels
	params.SampleRate = float64(buf.SampleRate)
	params.FramesPerBuffer = framesPerBuffer

	out := make([]float32, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(params, out)
	if err != nil {
		return fmt.Errorf("open output stream on %s: %w: %v", dev, ErrPlayback, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream on %s: %w: %v", dev, ErrPlayback, err)
	}

	for frame := 0; frame < buf.Frames(); frame += framesPerBuffer {
		if err := ctx.Err(); err != nil {
			_ = stream.Abort()
			return fmt.Errorf("playback on %s interrupted: %w", dev, err)
		}

		fillChunk(out, buf, frame, channels)
		if err := stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				slog.Debug("Output underflow", "device", dev.String())
				continue
			}
			_ = stream.Abort()
			return fmt.Errorf("write to %s: %w: %v", dev, ErrPlayback, err)
		}
	}

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("stop output stream on %s: %w: %v", dev, ErrPlayback, err)
	}
	return nil
}

// fillChunk copies frames starting at frame into out, folding source channels
// the device cannot take into its last channel and zero-padding the tail.
func fillChunk(out []float32, buf *audio.Buffer, frame, channels int) {
	for i := range out {
		out[i] = 0
	}

	frames := buf.Frames()
	for f := 0; f < framesPerBuffer && frame+f < frames; f++ {
		src := buf.Samples[(frame+f)*buf.Channels : (frame+f+1)*buf.Channels]
		dst := out[f*channels : (f+1)*channels]
		if buf.Channels <= channels {
			copy(dst, src)
			continue
		}

		copy(dst[:channels-1], src[:channels-1])
		var sum float32
		for _, s := range src[channels-1:] {
			sum += s
		}
		dst[channels-1] = sum / float32(len(src)-channels+1)
	}
}
