package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/audiolibrelab/callguide/internal/config"
	"github.com/audiolibrelab/callguide/internal/convert"
	"github.com/audiolibrelab/callguide/internal/signalfile"
)

// InputFinder resolves the configured capture device
type InputFinder interface {
	FindInput(name string) (audio.Device, error)
}

// Recorder runs one recording session per Run call:
// STARTING → CAPTURING → STOPPING → ENCODING → CLEANUP → EXITED.
type Recorder struct {
	cfg        config.RecordingConfig
	finder     InputFinder
	capturer   Capturer
	transcoder convert.Transcoder
	signals    *signalfile.Channel

	pid int
	now func() time.Time

	mutex   sync.RWMutex
	state   State
	session *Session
}

// NewRecorder creates a Recorder. The caller owns PortAudio initialization.
func NewRecorder(cfg config.RecordingConfig, finder InputFinder, capturer Capturer, transcoder convert.Transcoder, signals *signalfile.Channel) *Recorder {
	return &Recorder{
		cfg:        cfg,
		finder:     finder,
		capturer:   capturer,
		transcoder: transcoder,
		signals:    signals,
		pid:        os.Getpid(),
		now:        time.Now,
		state:      StateIdle,
	}
}

// State returns the current lifecycle phase and a copy of the session
func (r *Recorder) State() (State, *Session) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.session == nil {
		return r.state, nil
	}
	s := *r.session
	return r.state, &s
}

func (r *Recorder) setState(s State) {
	r.mutex.Lock()
	r.state = s
	r.mutex.Unlock()
	slog.Debug("Recorder state", "state", s)
}

// Run records until the stop file appears, the safety ceiling elapses or ctx
// is cancelled, then encodes to MP3. A start failure returns before any audio
// stream is opened. An encoding failure keeps the WAV file and is reported in
// Result.EncodeErr rather than as the returned error.
func (r *Recorder) Run(ctx context.Context, callID string) (*Result, error) {
	r.setState(StateStarting)
	defer r.setState(StateExited)

	if err := r.signals.CleanupStale(); err != nil {
		slog.Warn("Failed to remove stale signal files", "error", err)
	}

	if err := os.MkdirAll(r.cfg.OutputFolder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	dev, err := r.finder.FindInput(r.cfg.RecordingDevice)
	if err != nil {
		slog.Error("Recording device not found, recording aborted", "device", r.cfg.RecordingDevice, "error", err)
		return nil, err
	}

	session := newSession(dev, r.cfg.Channels, r.cfg.OutputFolder, callID, r.cfg.MaxDuration(), r.now())
	if session.SampleRate <= 0 {
		return nil, fmt.Errorf("device %s reports no default sample rate: %w", dev, ErrCapture)
	}

	lease, err := r.signals.Acquire(r.pid)
	if err != nil {
		slog.Error("Failed to claim recorder slot", "error", err)
		return nil, err
	}
	defer func() {
		r.setState(StateCleanup)
		if err := lease.Release(); err != nil {
			slog.Warn("Failed to remove signal files", "error", err)
		}
	}()

	r.mutex.Lock()
	r.session = session
	r.mutex.Unlock()

	log := slog.With("session_id", session.ID, "call_id", callID)
	log.Info("Recording started",
		"device", dev.String(),
		"channels", session.Channels,
		"device_max_channels", dev.MaxInputChannels,
		"sample_rate", session.SampleRate,
		"output", session.MP3Path,
		"ceiling", session.Ceiling)

	res := &Result{Session: *session}
	reason, frames, captureErr := r.capture(ctx, session, log)
	res.Reason = reason
	res.Frames = frames
	res.Elapsed = r.now().Sub(session.StartedAt)
	log.Info("Recording stopped", "reason", reason, "elapsed", res.Elapsed.Round(time.Millisecond), "frames", frames)

	if captureErr != nil && frames == 0 {
		log.Error("Capture failed before any audio was written", "error", captureErr)
		_ = os.Remove(session.WAVPath)
		return res, captureErr
	}
	if captureErr != nil {
		log.Error("Capture failed, encoding what was recorded", "error", captureErr)
	}

	r.setState(StateEncoding)
	// Encoding finishes even after an interrupt
	encodeCtx := context.WithoutCancel(ctx)
	if err := r.transcoder.Transcode(encodeCtx, session.WAVPath, session.MP3Path); err != nil {
		res.EncodeErr = err
		log.Error("MP3 encoding failed, WAV file kept", "wav", session.WAVPath, "error", err)
		return res, captureErr
	}
	res.Encoded = true

	if err := os.Remove(session.WAVPath); err != nil {
		log.Warn("Failed to delete WAV file", "wav", session.WAVPath, "error", err)
	} else {
		log.Info("WAV file deleted", "wav", session.WAVPath)
	}

	return res, captureErr
}

// capture owns the CAPTURING and STOPPING phases. The stream and the WAV file
// are closed on every return path.
func (r *Recorder) capture(ctx context.Context, s *Session, log *slog.Logger) (reason StopReason, frames int64, err error) {
	r.setState(StateCapturing)

	w, err := createWAV(s.WAVPath, s.SampleRate, s.Channels)
	if err != nil {
		return ReasonError, 0, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	captureCtx, cancelCapture := context.WithCancelCause(ctx)
	defer cancelCapture(nil)
	w.onError = cancelCapture

	waitCtx, cancelWait := context.WithTimeoutCause(captureCtx, s.Ceiling, errCeilingReached)
	defer cancelWait()

	var stream Stream
	defer func() {
		r.setState(StateStopping)
		if rec := recover(); rec != nil {
			reason, err = ReasonError, fmt.Errorf("%w: panic during capture: %v", ErrCapture, rec)
		}
		if stream != nil {
			if cerr := stream.Close(); cerr != nil {
				log.Warn("Failed to close input stream", "error", cerr)
			}
		}
		if cerr := w.Close(); cerr != nil {
			log.Warn("Failed to close WAV file", "error", cerr)
			if err == nil {
				reason, err = ReasonError, fmt.Errorf("%w: %v", ErrCapture, cerr)
			}
		}
		frames = w.Frames()
	}()

	stream, err = r.capturer.Open(s.Device, s.SampleRate, s.Channels, w.Write)
	if err != nil {
		stream = nil
		return ReasonError, 0, err
	}
	log.Info("Recording... waiting for stop signal")

	waitErr := r.signals.WaitStop(waitCtx)
	cause := context.Cause(waitCtx)
	switch {
	case waitErr == nil:
		log.Info("Stop signal detected")
		return ReasonStopFile, 0, nil
	case errors.Is(cause, errCeilingReached):
		log.Warn("Safety ceiling reached, stopping recording", "ceiling", s.Ceiling)
		return ReasonCeiling, 0, nil
	case ctx.Err() != nil:
		log.Info("Recorder interrupted")
		return ReasonInterrupt, 0, nil
	default:
		return ReasonError, 0, cause
	}
}
