package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Buffer is decoded PCM in interleaved float32 samples in [-1, 1].
// It is never mutated after LoadClip returns it.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel)
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// LoadClip decodes a guidance clip from disk. WAV and MP3 are supported,
// chosen by file extension.
func LoadClip(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip %s: %w: %v", path, ErrClipUnreadable, err)
	}
	defer f.Close()

	var buf *Buffer
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		buf, err = decodeWAV(f)
	case ".mp3":
		buf, err = decodeMP3(f)
	default:
		err = fmt.Errorf("unsupported clip format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode clip %s: %w: %v", path, ErrClipUnreadable, err)
	}
	if len(buf.Samples) == 0 {
		return nil, fmt.Errorf("clip %s has no audio: %w", path, ErrClipUnreadable)
	}
	return buf, nil
}

func decodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	samples, err := wavSamples(pcm.Data, int(dec.BitDepth), dec.WavAudioFormat)
	if err != nil {
		return nil, err
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// wavSamples normalises decoded WAV samples to [-1, 1]. go-audio hands back
// 8-bit PCM unsigned and IEEE float samples as their raw 32-bit patterns.
func wavSamples(data []int, bitDepth int, format uint16) ([]float32, error) {
	samples := make([]float32, len(data))

	switch {
	case format == wavFormatFloat:
		if bitDepth != 32 {
			return nil, fmt.Errorf("unsupported float bit depth %d", bitDepth)
		}
		for i, v := range data {
			samples[i] = math.Float32frombits(uint32(v))
		}
	case bitDepth == 8:
		for i, v := range data {
			samples[i] = float32(v-128) / 128
		}
	case bitDepth > 8 && bitDepth <= 32:
		scale := float32(int64(1) << (bitDepth - 1))
		for i, v := range data {
			samples[i] = float32(v) / scale
		}
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	return samples, nil
}

// decodeMP3 reads the whole stream; go-mp3 always emits 16-bit LE stereo.
func decodeMP3(r io.Reader) (*Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("unexpected MP3 decoded length %d", len(raw))
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}
