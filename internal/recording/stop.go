package recording

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/audiolibrelab/callguide/internal/signalfile"
)

// StopOutcome reports what Stop observed
type StopOutcome string

const (
	StopNotRunning StopOutcome = "not_running"
	StopCompleted  StopOutcome = "stopped"
	StopTimedOut   StopOutcome = "timed_out"
)

// Stop asks the running recorder to finish and waits up to wait for it to
// release its PID file. With no PID file it does nothing, not even write the
// stop file. On timeout the stop file is removed and the recorder is left
// running; that outcome is a warning, not an error.
func Stop(ctx context.Context, signals *signalfile.Channel, wait time.Duration) (StopOutcome, error) {
	pid, err := signals.ReadPID()
	if errors.Is(err, signalfile.ErrNoSession) {
		slog.Warn("PID file not found, recorder does not appear to be running", "path", signals.PIDPath())
		return StopNotRunning, nil
	}
	if err != nil {
		slog.Error("Failed to read PID file", "path", signals.PIDPath(), "error", err)
		return "", err
	}
	slog.Info("Stopping recorder", "pid", pid)

	if err := signals.RequestStop(); err != nil {
		return "", err
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	slog.Info("Waiting for recorder to exit", "timeout", wait)
	err = signals.WaitReleased(waitCtx)
	if err == nil {
		slog.Info("Recorder exited normally", "pid", pid)
		return StopCompleted, nil
	}

	if cerr := signals.ClearStop(); cerr != nil {
		slog.Warn("Failed to remove stop file", "error", cerr)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	slog.Warn("Recorder did not exit in time", "pid", pid, "timeout", wait)
	return StopTimedOut, nil
}
