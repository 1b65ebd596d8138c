package signalfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T, alive func(int) bool) *Channel {
	t.Helper()
	c := New(t.TempDir(), WithPollInterval(10*time.Millisecond))
	if alive != nil {
		c.alive = alive
	}
	return c
}

func aliveAll(int) bool  { return true }
func aliveNone(int) bool { return false }

func TestAcquire_WritesPIDAndReleaseRemovesBothFiles(t *testing.T) {
	c := newTestChannel(t, aliveAll)

	lease, err := c.Acquire(4242)
	require.NoError(t, err)
	assert.Equal(t, 4242, lease.PID())

	pid, err := c.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	require.NoError(t, c.RequestStop())
	require.NoError(t, lease.Release())
	assert.False(t, c.Active())
	assert.False(t, c.StopRequested())

	// Idempotent
	assert.NoError(t, lease.Release())
}

func TestAcquire_SecondLiveSessionRejected(t *testing.T) {
	c := newTestChannel(t, aliveAll)

	_, err := c.Acquire(100)
	require.NoError(t, err)

	_, err = c.Acquire(200)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionActive)

	pid, err := c.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, 100, pid, "the first owner's PID file must be untouched")
}

func TestAcquire_ReclaimsStalePID(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dead owner", "99999"},
		{"malformed content", "not-a-pid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChannel(t, aliveNone)
			require.NoError(t, os.WriteFile(c.PIDPath(), []byte(tt.content), 0644))
			require.NoError(t, c.RequestStop())

			lease, err := c.Acquire(300)
			require.NoError(t, err)
			assert.Equal(t, 300, lease.PID())
			assert.False(t, c.StopRequested(), "a stale stop file would end the new session at once")
		})
	}
}

func TestAcquire_ConcurrentReclaimGrantsOneLease(t *testing.T) {
	const stale = 999999
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PIDFileName), []byte("999999"), 0644))

	// Both recorders judge the stale owner dead before either reclaims
	var (
		staleChecks atomic.Int32
		bothChecked sync.WaitGroup
	)
	bothChecked.Add(2)
	alive := func(pid int) bool {
		if pid == stale {
			if staleChecks.Add(1) <= 2 {
				bothChecked.Done()
				bothChecked.Wait()
			}
			return false
		}
		return true
	}

	pids := []int{111, 222}
	leases := make([]*Lease, len(pids))
	errs := make([]error, len(pids))

	var wg sync.WaitGroup
	for i, pid := range pids {
		c := New(dir)
		c.alive = alive
		wg.Add(1)
		go func(i, pid int) {
			defer wg.Done()
			leases[i], errs[i] = c.Acquire(pid)
		}(i, pid)
	}
	wg.Wait()

	var winner *Lease
	granted := 0
	for i := range pids {
		if errs[i] == nil {
			granted++
			winner = leases[i]
			continue
		}
		assert.ErrorIs(t, errs[i], ErrSessionActive)
	}
	require.Equal(t, 1, granted, "exactly one recorder may hold the slot")

	c := New(dir)
	pid, err := c.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, winner.PID(), pid)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), PIDFileName+"."), "leftover private file %s", e.Name())
	}
}

func TestRelease_LeavesForeignPIDFile(t *testing.T) {
	c := newTestChannel(t, aliveAll)
	lease, err := c.Acquire(100)
	require.NoError(t, err)

	// Another session took over the slot after this one lost it
	require.NoError(t, os.WriteFile(c.PIDPath(), []byte("200"), 0644))
	require.NoError(t, c.RequestStop())

	require.NoError(t, lease.Release())

	pid, err := c.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, 200, pid)
	assert.True(t, c.StopRequested(), "the other session's stop request must survive")
}

func TestCleanupStale_KeepsOwnerThatAppearedMeanwhile(t *testing.T) {
	c := newTestChannel(t, nil)
	require.NoError(t, os.WriteFile(c.PIDPath(), []byte("12345"), 0644))

	// A new recorder replaces the stale file between the read and the removal
	c.alive = func(int) bool {
		require.NoError(t, os.WriteFile(c.PIDPath(), []byte("777"), 0644))
		return false
	}

	require.NoError(t, c.CleanupStale())
	pid, err := c.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, 777, pid)
}

func TestAcquire_CreatesDirectory(t *testing.T) {
	c := New(t.TempDir() + "/nested/signals")
	_, err := c.Acquire(os.Getpid())
	require.NoError(t, err)
	assert.True(t, c.Active())
}

func TestReadPID_NoSession(t *testing.T) {
	c := newTestChannel(t, nil)
	_, err := c.ReadPID()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCleanupStale(t *testing.T) {
	t.Run("orphaned stop file", func(t *testing.T) {
		c := newTestChannel(t, aliveAll)
		require.NoError(t, c.RequestStop())

		require.NoError(t, c.CleanupStale())
		assert.False(t, c.StopRequested())
	})

	t.Run("dead owner", func(t *testing.T) {
		c := newTestChannel(t, aliveNone)
		require.NoError(t, os.WriteFile(c.PIDPath(), []byte("12345"), 0644))
		require.NoError(t, c.RequestStop())

		require.NoError(t, c.CleanupStale())
		assert.False(t, c.Active())
		assert.False(t, c.StopRequested())
	})

	t.Run("live owner untouched", func(t *testing.T) {
		c := newTestChannel(t, aliveAll)
		_, err := c.Acquire(12345)
		require.NoError(t, err)
		require.NoError(t, c.RequestStop())

		require.NoError(t, c.CleanupStale())
		assert.True(t, c.Active())
		assert.True(t, c.StopRequested())
	})
}

func TestWaitStop(t *testing.T) {
	c := newTestChannel(t, nil)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = c.RequestStop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.WaitStop(ctx))
	assert.True(t, c.StopRequested())
}

func TestWaitStop_AlreadyPresent(t *testing.T) {
	c := newTestChannel(t, nil)
	require.NoError(t, c.RequestStop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.WaitStop(ctx))
}

func TestWaitStop_Cancelled(t *testing.T) {
	c := newTestChannel(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.WaitStop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitStop_PollingWithoutWatchableDir(t *testing.T) {
	// Directory is created after the wait starts, so only the ticker can see it
	c := New(t.TempDir()+"/later", WithPollInterval(10*time.Millisecond))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.MkdirAll(c.Dir(), 0755)
		_ = c.RequestStop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, c.WaitStop(ctx))
}

func TestWaitReleased(t *testing.T) {
	c := newTestChannel(t, aliveAll)
	lease, err := c.Acquire(500)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = lease.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitReleased(ctx))
	assert.False(t, c.Active())
}

func TestProcessAlive_Self(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
}
