// Package signalfile implements the file-based start/stop rendezvous between
// the guidance process and the recorder process.
package signalfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const (
	PIDFileName  = ".recording.pid"
	StopFileName = ".stop_recording"

	DefaultPollInterval = 500 * time.Millisecond
)

// Channel is the pair of signal files living in one directory. The PID file
// claims the single recorder slot and the stop file asks its owner to stop.
type Channel struct {
	dir   string
	poll  time.Duration
	alive func(pid int) bool
}

// Option configures a Channel.
type Option func(*Channel)

// WithPollInterval sets the fallback poll period used alongside file watching.
func WithPollInterval(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.poll = d
		}
	}
}

// New creates a Channel rooted at dir
func New(dir string, opts ...Option) *Channel {
	c := &Channel{
		dir:   dir,
		poll:  DefaultPollInterval,
		alive: processAlive,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Dir() string      { return c.dir }
func (c *Channel) PIDPath() string  { return filepath.Join(c.dir, PIDFileName) }
func (c *Channel) StopPath() string { return filepath.Join(c.dir, StopFileName) }

// Lease is ownership of the PID file. Release it exactly when the session ends.
type Lease struct {
	ch  *Channel
	pid int
}

// PID returns the process id written into the PID file
func (l *Lease) PID() int { return l.pid }

// Release removes the PID file if it still names this lease, and the stop
// file with it. A PID file that now belongs to another session is left
// alone. It is safe to call more than once.
func (l *Lease) Release() error {
	outcome, err := l.ch.takePID(func(owner int, ok bool) bool { return ok && owner == l.pid })
	if err != nil {
		return err
	}
	if outcome == pidForeign {
		slog.Warn("PID file owned by another session, leaving it", "path", l.ch.PIDPath(), "pid", l.pid)
		return nil
	}
	return removeIfExists(l.ch.StopPath())
}

// maxAcquireAttempts bounds the create/reclaim loop when several recorders
// race for the slot.
const maxAcquireAttempts = 4

// Acquire creates the PID file exclusively. If the file already exists and
// names a live process, ErrSessionActive is returned. A PID file left by a
// dead process is reclaimed with a warning.
func (c *Channel) Acquire(pid int) (*Lease, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("create signal directory %s: %w: %v", c.dir, ErrSignalIO, err)
	}

	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		created, err := c.createPID(pid)
		if err != nil {
			return nil, err
		}
		if created {
			slog.Info("PID file created", "path", c.PIDPath(), "pid", pid)
			return &Lease{ch: c, pid: pid}, nil
		}

		owner, rerr := c.ReadPID()
		switch {
		case errors.Is(rerr, ErrNoSession):
			// Owner released between our create and read
			continue
		case rerr == nil && c.alive(owner):
			return nil, fmt.Errorf("recorder pid %d: %w", owner, ErrSessionActive)
		}

		slog.Warn("Reclaiming stale PID file", "path", c.PIDPath(), "owner", owner, "read_error", rerr)
		outcome, err := c.takePID(sameOwner(owner, rerr))
		if err != nil {
			return nil, err
		}
		if outcome == pidTaken {
			if err := removeIfExists(c.StopPath()); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("PID file %s: %w", c.PIDPath(), ErrSessionActive)
}

// createPID publishes the PID file with its content in one step: the pid is
// written to a private file which is then hard-linked into place. Linking
// fails when the PID file exists, so readers never see an empty file.
func (c *Channel) createPID(pid int) (bool, error) {
	tmp := c.privatePath()
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return false, fmt.Errorf("write PID file: %w: %v", ErrSignalIO, err)
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, c.PIDPath()); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create PID file: %w: %v", ErrSignalIO, err)
	}
	return true, nil
}

type pidOutcome int

const (
	pidGone    pidOutcome = iota // no PID file was present
	pidTaken                     // the PID file matched and was removed
	pidForeign                   // the PID file belongs to someone else and was put back
)

// sameOwner matches the owner observed by a previous ReadPID. A malformed
// file only matches another malformed file.
func sameOwner(owner int, readErr error) func(int, bool) bool {
	return func(pid int, ok bool) bool {
		if readErr != nil {
			return !ok
		}
		return ok && pid == owner
	}
}

// takePID removes the PID file only if match accepts its content. The file is
// first renamed to a private name so no other process can replace it between
// the check and the removal. A file that does not match is linked back.
func (c *Channel) takePID(match func(pid int, ok bool) bool) (pidOutcome, error) {
	tmp := c.privatePath()
	if err := os.Rename(c.PIDPath(), tmp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pidGone, nil
		}
		return pidGone, fmt.Errorf("move PID file: %w: %v", ErrSignalIO, err)
	}

	pid, ok := parsePID(tmp)
	if match(pid, ok) {
		return pidTaken, removeIfExists(tmp)
	}

	defer os.Remove(tmp)
	if err := os.Link(tmp, c.PIDPath()); err != nil && !errors.Is(err, fs.ErrExist) {
		return pidForeign, fmt.Errorf("restore PID file: %w: %v", ErrSignalIO, err)
	}
	return pidForeign, nil
}

func (c *Channel) privatePath() string {
	return filepath.Join(c.dir, PIDFileName+"."+uuid.NewString())
}

func parsePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// ReadPID returns the process id in the PID file, or ErrNoSession.
func (c *Channel) ReadPID() (int, error) {
	data, err := os.ReadFile(c.PIDPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNoSession
		}
		return 0, fmt.Errorf("read PID file: %w: %v", ErrSignalIO, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed PID file %q: %w", strings.TrimSpace(string(data)), ErrSignalIO)
	}
	return pid, nil
}

// RequestStop writes the stop file
func (c *Channel) RequestStop() error {
	if err := os.WriteFile(c.StopPath(), []byte("stop"), 0644); err != nil {
		return fmt.Errorf("write stop file: %w: %v", ErrSignalIO, err)
	}
	slog.Info("Stop file created", "path", c.StopPath())
	return nil
}

// StopRequested reports whether the stop file exists
func (c *Channel) StopRequested() bool {
	return exists(c.StopPath())
}

// Active reports whether the PID file exists
func (c *Channel) Active() bool {
	return exists(c.PIDPath())
}

// ClearStop removes the stop file if present
func (c *Channel) ClearStop() error {
	return removeIfExists(c.StopPath())
}

// CleanupStale removes signal files a crashed session left behind: a PID file
// whose process is gone, or a stop file with no PID file next to it. A live
// owner's files are left alone.
func (c *Channel) CleanupStale() error {
	pid, err := c.ReadPID()
	switch {
	case errors.Is(err, ErrNoSession):
		if c.StopRequested() {
			slog.Warn("Removing orphaned stop file", "path", c.StopPath())
			return c.ClearStop()
		}
		return nil
	case err == nil && c.alive(pid):
		return nil
	}

	slog.Warn("Removing stale signal files", "dir", c.dir, "pid", pid, "read_error", err)
	outcome, terr := c.takePID(sameOwner(pid, err))
	if terr != nil || outcome == pidForeign {
		return terr
	}
	return removeIfExists(c.StopPath())
}

// WaitStop blocks until the stop file appears or ctx is done.
func (c *Channel) WaitStop(ctx context.Context) error {
	return c.waitFor(ctx, c.StopRequested)
}

// WaitReleased blocks until the PID file is gone or ctx is done.
func (c *Channel) WaitReleased(ctx context.Context) error {
	return c.waitFor(ctx, func() bool { return !c.Active() })
}

// waitFor re-evaluates cond on every directory event and on every poll tick.
// If the watcher cannot be installed the ticker alone drives it.
func (c *Channel) waitFor(ctx context.Context, cond func() bool) error {
	if cond() {
		return nil
	}

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("File watcher unavailable, polling only", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(c.dir); err != nil {
			slog.Debug("Cannot watch signal directory, polling only", "dir", c.dir, "error", err)
		} else {
			events, errs = watcher.Events, watcher.Errors
		}
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	// The file may have changed before the watch was installed
	if cond() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if cond() {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Debug("File watcher error", "error", err)
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w: %v", path, ErrSignalIO, err)
	}
	return nil
}
