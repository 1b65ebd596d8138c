package play

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink sleeps for a per-device duration and can fail or panic on request
type fakeSink struct {
	mu       sync.Mutex
	delay    map[string]time.Duration
	fail     map[string]error
	panics   map[string]bool
	finished map[string]time.Time
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		delay:    map[string]time.Duration{},
		fail:     map[string]error{},
		panics:   map[string]bool{},
		finished: map[string]time.Time{},
	}
}

func (s *fakeSink) Play(_ context.Context, _ *audio.Buffer, dev audio.Device) error {
	s.mu.Lock()
	delay, err, boom := s.delay[dev.Name], s.fail[dev.Name], s.panics[dev.Name]
	s.mu.Unlock()

	time.Sleep(delay)

	s.mu.Lock()
	s.finished[dev.Name] = time.Now()
	s.mu.Unlock()

	if boom {
		panic("driver crashed")
	}
	return err
}

func testBuffer() *audio.Buffer {
	return &audio.Buffer{Samples: make([]float32, 4800), SampleRate: 48000, Channels: 1}
}

var (
	cable    = audio.Device{Index: 3, Name: "CABLE Input", MaxOutputChannels: 2}
	speakers = audio.Device{Index: 1, Name: "Speakers", MaxOutputChannels: 2}
)

func TestCoordinator_SingleDevice(t *testing.T) {
	sink := newFakeSink()
	c := NewCoordinator(sink)

	require.NoError(t, c.Play(context.Background(), testBuffer(), cable, nil))
	assert.Contains(t, sink.finished, "CABLE Input")
	assert.NotContains(t, sink.finished, "Speakers")
}

func TestCoordinator_DualJoinsBoth(t *testing.T) {
	sink := newFakeSink()
	sink.delay["Speakers"] = 80 * time.Millisecond
	c := NewCoordinator(sink)

	require.NoError(t, c.Play(context.Background(), testBuffer(), cable, &speakers))
	returned := time.Now()

	require.Contains(t, sink.finished, "CABLE Input")
	require.Contains(t, sink.finished, "Speakers")
	assert.False(t, returned.Before(sink.finished["Speakers"]), "Play returned before the slower device finished")
}

func TestCoordinator_DualRunsConcurrently(t *testing.T) {
	sink := newFakeSink()
	sink.delay["CABLE Input"] = 100 * time.Millisecond
	sink.delay["Speakers"] = 100 * time.Millisecond
	c := NewCoordinator(sink)

	start := time.Now()
	require.NoError(t, c.Play(context.Background(), testBuffer(), cable, &speakers))
	assert.Less(t, time.Since(start), 190*time.Millisecond)
}

func TestCoordinator_FailureIsolation(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *fakeSink)
		failedName string
	}{
		{
			name: "secondary fails fast",
			setup: func(s *fakeSink) {
				s.fail["Speakers"] = errors.New("device busy")
				s.delay["CABLE Input"] = 60 * time.Millisecond
			},
			failedName: "Speakers",
		},
		{
			name: "primary fails fast",
			setup: func(s *fakeSink) {
				s.fail["CABLE Input"] = errors.New("device busy")
				s.delay["Speakers"] = 60 * time.Millisecond
			},
			failedName: "CABLE Input",
		},
		{
			name: "secondary panics",
			setup: func(s *fakeSink) {
				s.panics["Speakers"] = true
				s.delay["CABLE Input"] = 30 * time.Millisecond
			},
			failedName: "Speakers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newFakeSink()
			tt.setup(sink)
			c := NewCoordinator(sink)

			err := c.Play(context.Background(), testBuffer(), cable, &speakers)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPlayback)
			assert.Contains(t, err.Error(), tt.failedName)

			assert.Contains(t, sink.finished, "CABLE Input")
			assert.Contains(t, sink.finished, "Speakers")
		})
	}
}

func TestCoordinator_EmptyBuffer(t *testing.T) {
	c := NewCoordinator(newFakeSink())
	err := c.Play(context.Background(), &audio.Buffer{SampleRate: 48000, Channels: 1}, cable, nil)
	assert.ErrorIs(t, err, ErrPlayback)
}

func TestFillChunk(t *testing.T) {
	buf := &audio.Buffer{
		Samples:    []float32{0.2, 0.4, 0.6, 0.8},
		SampleRate: 8000,
		Channels:   2,
	}

	t.Run("same channel count", func(t *testing.T) {
		out := make([]float32, framesPerBuffer*2)
		fillChunk(out, buf, 0, 2)
		assert.Equal(t, []float32{0.2, 0.4, 0.6, 0.8}, out[:4])
		assert.Equal(t, float32(0), out[4])
	})

	t.Run("downmix to mono", func(t *testing.T) {
		out := make([]float32, framesPerBuffer)
		fillChunk(out, buf, 0, 1)
		assert.InDelta(t, 0.3, out[0], 1e-6)
		assert.InDelta(t, 0.7, out[1], 1e-6)
		assert.Equal(t, float32(0), out[2])
	})

	t.Run("offset past end pads silence", func(t *testing.T) {
		out := make([]float32, framesPerBuffer*2)
		out[0] = 1
		fillChunk(out, buf, 2, 2)
		assert.Equal(t, float32(0), out[0])
	})
}
