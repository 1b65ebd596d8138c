// Package guidance runs the incoming-call flow: silence the operator, play the
// guidance clip into the virtual cable, start the recorder, restore audio.
package guidance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/audiolibrelab/callguide/internal/config"
	"github.com/audiolibrelab/callguide/internal/recording"
	"github.com/google/uuid"
)

// State is an orchestrator phase
type State string

const (
	StatePreparing State = "PREPARING"
	StateMuting    State = "MUTING"
	StatePlaying   State = "PLAYING"
	StateRestoring State = "RESTORING"
	StateDone      State = "DONE"
	StateAborted   State = "ABORTED"
)

// OutputFinder resolves playback devices
type OutputFinder interface {
	FindOutput(name string) (audio.Device, error)
	DefaultOutput() (audio.Device, error)
}

// Player plays a buffer on a primary and an optional secondary device
type Player interface {
	Play(ctx context.Context, buf *audio.Buffer, primary audio.Device, secondary *audio.Device) error
}

// Report is the outcome of one Run. It also carries the run-scoped state:
// the resolved devices and which endpoints were actually muted.
type Report struct {
	RunID  string
	CallID string

	States    []State
	Final     State
	Device    audio.Device
	Secondary *audio.Device
	ClipPath  string
	ClipSpan  time.Duration

	CaptureMuted bool
	RenderMuted  bool
	RecorderPID  int

	AbortErr    error
	RenderErr   error
	RecorderErr error
	PlaybackErr error
	RestoreErr  error
}

func (r *Report) enter(s State) {
	r.States = append(r.States, s)
	r.Final = s
	slog.Debug("Guidance state", "run_id", r.RunID, "state", s)
}

// Orchestrator sequences one incoming call at a time.
type Orchestrator struct {
	cfg       *config.Config
	finder    OutputFinder
	endpoints audio.EndpointController
	player    Player
	spawner   recording.Spawner
	loadClip  func(path string) (*audio.Buffer, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClipLoader replaces the clip decoder (for testing).
func WithClipLoader(load func(path string) (*audio.Buffer, error)) Option {
	return func(o *Orchestrator) { o.loadClip = load }
}

// New creates an Orchestrator. spawner may be nil when recording is disabled.
func New(cfg *config.Config, finder OutputFinder, endpoints audio.EndpointController, player Player, spawner recording.Spawner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		finder:    finder,
		endpoints: endpoints,
		player:    player,
		spawner:   spawner,
		loadClip:  audio.LoadClip,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes PREPARING → MUTING → PLAYING → RESTORING → DONE, or ends in
// ABORTED when preparation or the capture mute fails. It never panics and
// never returns an error: every failure is logged and recorded in the Report.
// Once capture is muted, restoration runs on every path.
func (o *Orchestrator) Run(ctx context.Context, callID string) (report *Report) {
	report = &Report{RunID: uuid.NewString(), CallID: callID}
	log := slog.With("run_id", report.RunID, "call_id", callID)
	if callID != "" {
		log.Info("Incoming call", "number", callID)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Unexpected panic in guidance run", "panic", r, "stack", string(debug.Stack()))
			report.AbortErr = errors.Join(report.AbortErr, fmt.Errorf("panic: %v", r))
			if report.Final != StateDone {
				report.enter(StateAborted)
			}
		}
		log.Info("Guidance run finished", "state", report.Final, "capture_muted", report.CaptureMuted, "render_muted", report.RenderMuted)
	}()

	// PREPARING: all slow I/O happens before anything is muted
	report.enter(StatePreparing)
	buf, err := o.prepare(report, log)
	if err != nil {
		report.AbortErr = err
		report.enter(StateAborted)
		return report
	}

	// MUTING: mute calls run to completion even if ctx is cancelled
	report.enter(StateMuting)
	muteCtx := context.WithoutCancel(ctx)
	if err := o.endpoints.Mute(muteCtx, audio.RoleCapture); err != nil {
		log.Error("Failed to mute microphone, aborting", "error", err)
		report.AbortErr = err
		report.enter(StateAborted)
		return report
	}
	report.CaptureMuted = true

	defer o.restore(ctx, report, log)

	if err := o.endpoints.Mute(muteCtx, audio.RoleRender); err != nil {
		log.Warn("Failed to mute speaker, continuing", "error", err)
		report.RenderErr = err
	} else {
		report.RenderMuted = true
	}

	// PLAYING
	report.enter(StatePlaying)
	o.startRecorder(report, log)
	o.play(ctx, buf, report, log)
	return report
}

// prepare loads the clip, then resolves the cable and, in dual mode, the
// default output. Only the first two can abort the run.
func (o *Orchestrator) prepare(report *Report, log *slog.Logger) (*audio.Buffer, error) {
	report.ClipPath = o.cfg.Resolve(o.cfg.General.GuidanceFile)

	buf, err := o.loadClip(report.ClipPath)
	if err != nil {
		log.Warn("Guidance clip unavailable, nothing muted", "path", report.ClipPath, "error", err)
		return nil, err
	}
	report.ClipSpan = buf.Duration()

	dev, err := o.finder.FindOutput(o.cfg.Audio.VirtualCableName)
	if err != nil {
		log.Error("Virtual cable device not found, nothing muted", "cable", o.cfg.Audio.VirtualCableName, "error", err)
		return nil, err
	}
	report.Device = dev

	if o.cfg.Audio.PlaybackMode == config.PlaybackCableAndDefaultOutput {
		def, err := o.finder.DefaultOutput()
		switch {
		case err != nil:
			log.Warn("Default output unavailable, playing on cable only", "error", err)
		case def.Name == dev.Name && def.Index == dev.Index:
			log.Debug("Default output is the cable, playing once")
		default:
			report.Secondary = &def
		}
	}

	log.Info("Guidance prepared", "clip", report.ClipPath, "duration", report.ClipSpan, "device", dev.String())
	return buf, nil
}

// startRecorder is fire-and-forget; a spawn failure never blocks playback
func (o *Orchestrator) startRecorder(report *Report, log *slog.Logger) {
	if o.spawner == nil || !o.cfg.Recording.Enabled {
		return
	}
	pid, err := o.spawner.Spawn(report.CallID)
	if err != nil {
		log.Error("Failed to start recorder, continuing without recording", "error", err)
		report.RecorderErr = err
		return
	}
	report.RecorderPID = pid
}

func (o *Orchestrator) play(ctx context.Context, buf *audio.Buffer, report *Report, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Playback panicked", "panic", r, "stack", string(debug.Stack()))
			report.PlaybackErr = fmt.Errorf("playback panic: %v", r)
		}
	}()

	log.Info("Playing guidance", "clip", report.ClipPath)
	if err := o.player.Play(ctx, buf, report.Device, report.Secondary); err != nil {
		log.Error("Guidance playback failed", "error", err)
		report.PlaybackErr = err
		return
	}
	log.Info("Guidance playback completed")
}

// restore unmutes capture, then render only if render was muted. Both are
// attempted regardless of the other's outcome.
func (o *Orchestrator) restore(ctx context.Context, report *Report, log *slog.Logger) {
	report.enter(StateRestoring)
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if err := o.safeUnmute(ctx, audio.RoleCapture); err != nil {
		log.Error("Failed to unmute microphone, unmute it manually", "error", err)
		errs = append(errs, err)
	}
	if report.RenderMuted {
		if err := o.safeUnmute(ctx, audio.RoleRender); err != nil {
			log.Error("Failed to unmute speaker, unmute it manually", "error", err)
			errs = append(errs, err)
		}
	}

	report.RestoreErr = errors.Join(errs...)
	report.enter(StateDone)
}

func (o *Orchestrator) safeUnmute(ctx context.Context, role audio.EndpointRole) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unmute %s panicked: %v", role, r)
		}
	}()
	return o.endpoints.Unmute(ctx, role)
}
