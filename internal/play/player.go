package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiolibrelab/callguide/internal/audio"
	"golang.org/x/sync/errgroup"
)

// Sink plays a whole buffer on one output device and blocks until done.
type Sink interface {
	Play(ctx context.Context, buf *audio.Buffer, dev audio.Device) error
}

// Coordinator plays one buffer on one or two output devices.
type Coordinator struct {
	sink Sink
}

// NewCoordinator creates a Coordinator writing through sink
func NewCoordinator(sink Sink) *Coordinator {
	return &Coordinator{sink: sink}
}

// Play streams buf to primary and, when secondary is non-nil, to secondary at
// the same time. The primary plays on the calling goroutine. Play returns only
// after every stream has finished; a failure on one device is logged and does
// not stop the other. The returned error joins all device failures.
func (c *Coordinator) Play(ctx context.Context, buf *audio.Buffer, primary audio.Device, secondary *audio.Device) error {
	if buf == nil || len(buf.Samples) == 0 {
		return fmt.Errorf("empty buffer: %w", ErrPlayback)
	}

	if secondary == nil {
		return c.playOn(ctx, buf, primary, "primary")
	}

	// No errgroup context: one failure must not cancel the other stream
	var g errgroup.Group
	g.Go(func() error {
		return c.playOn(ctx, buf, *secondary, "secondary")
	})

	primaryErr := c.playOn(ctx, buf, primary, "primary")
	secondaryErr := g.Wait()

	return errors.Join(primaryErr, secondaryErr)
}

func (c *Coordinator) playOn(ctx context.Context, buf *audio.Buffer, dev audio.Device, role string) (err error) {
	start := time.Now()
	slog.Info("Playback started", "role", role, "device", dev.String(), "duration", buf.Duration())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s device %s panicked: %v: %w", role, dev, r, ErrPlayback)
		}
		if err != nil {
			slog.Error("Playback failed", "role", role, "device", dev.String(), "error", err)
			return
		}
		slog.Info("Playback completed", "role", role, "device", dev.String(), "elapsed", time.Since(start).Round(time.Millisecond))
	}()

	if err := c.sink.Play(ctx, buf, dev); err != nil {
		if errors.Is(err, ErrPlayback) {
			return fmt.Errorf("%s device %s: %w", role, dev, err)
		}
		return fmt.Errorf("%s device %s: %w: %v", role, dev, ErrPlayback, err)
	}
	return nil
}
