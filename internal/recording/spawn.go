package recording

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Spawner starts a recorder that outlives the caller
type Spawner interface {
	Spawn(callID string) (pid int, err error)
}

// ExecSpawner re-executes the current binary in record mode, detached from
// the caller's session with stdio on the null device.
type ExecSpawner struct {
	Executable string
	ConfigFile string
}

var _ Spawner = (*ExecSpawner)(nil)

// NewExecSpawner creates a spawner for the running executable
func NewExecSpawner(configFile string) (*ExecSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w: %v", ErrSpawn, err)
	}
	return &ExecSpawner{Executable: exe, ConfigFile: configFile}, nil
}

func (s *ExecSpawner) args(callID string) []string {
	args := []string{"record"}
	if s.ConfigFile != "" {
		args = append(args, "--config", s.ConfigFile)
	}
	if callID != "" {
		args = append(args, "--number", callID)
	}
	return args
}

// Spawn starts the recorder and returns without waiting for it
func (s *ExecSpawner) Spawn(callID string) (int, error) {
	cmd := exec.Command(s.Executable, s.args(callID)...)
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w: %v", s.Executable, ErrSpawn, err)
	}

	pid := cmd.Process.Pid
	slog.Info("Recorder process started", "pid", pid, "call_id", callID)

	// Reap the child if it exits while we are still alive
	go func() {
		_ = cmd.Wait()
	}()
	return pid, nil
}
