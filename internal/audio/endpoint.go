package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// EndpointRole is a logical default device role, resolved to a live OS
// endpoint each time it is used.
type EndpointRole string

const (
	RoleCapture EndpointRole = "capture"
	RoleRender  EndpointRole = "render"
)

// EndpointController mutes and unmutes the default endpoint for a role.
type EndpointController interface {
	Mute(ctx context.Context, role EndpointRole) error
	Unmute(ctx context.Context, role EndpointRole) error
}

// commandRunner runs an external command and returns its stdout.
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return output, fmt.Errorf("%s %s: %w (stderr: %s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return output, nil
}

// CommandEndpoints drives endpoint mute state through the sound server's
// command line tools (pactl for PulseAudio/PipeWire, amixer for ALSA).
// Each call resolves the endpoint, applies one mutation and keeps nothing.
type CommandEndpoints struct {
	backend string
	run     commandRunner
}

var _ EndpointController = (*CommandEndpoints)(nil)

// EndpointOption configures a CommandEndpoints.
type EndpointOption func(*CommandEndpoints)

// WithCommandRunner replaces the command runner (for testing).
func WithCommandRunner(r commandRunner) EndpointOption {
	return func(e *CommandEndpoints) { e.run = r }
}

// NewCommandEndpoints creates an endpoint controller for backend ("pactl" or "amixer").
func NewCommandEndpoints(backend string, opts ...EndpointOption) (*CommandEndpoints, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	switch backend {
	case "pactl", "amixer":
	default:
		return nil, fmt.Errorf("unsupported endpoint backend: %s", backend)
	}

	e := &CommandEndpoints{backend: backend, run: execRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Mute silences the default endpoint for role
func (e *CommandEndpoints) Mute(ctx context.Context, role EndpointRole) error {
	return e.setMute(ctx, role, true)
}

// Unmute restores the default endpoint for role
func (e *CommandEndpoints) Unmute(ctx context.Context, role EndpointRole) error {
	return e.setMute(ctx, role, false)
}

func (e *CommandEndpoints) setMute(ctx context.Context, role EndpointRole, muted bool) error {
	if role != RoleCapture && role != RoleRender {
		return fmt.Errorf("unknown endpoint role: %s", role)
	}

	var (
		endpoint string
		err      error
	)
	switch e.backend {
	case "amixer":
		endpoint, err = e.setAmixer(ctx, role, muted)
	default:
		endpoint, err = e.setPactl(ctx, role, muted)
	}
	if err != nil {
		return err
	}

	if muted {
		slog.Info("Endpoint muted", "role", role, "endpoint", endpoint)
	} else {
		slog.Info("Endpoint unmuted", "role", role, "endpoint", endpoint)
	}
	return nil
}

// setPactl resolves the current default source/sink, then mutes it by name
func (e *CommandEndpoints) setPactl(ctx context.Context, role EndpointRole, muted bool) (string, error) {
	getCmd, setCmd := "get-default-source", "set-source-mute"
	if role == RoleRender {
		getCmd, setCmd = "get-default-sink", "set-sink-mute"
	}

	output, err := e.run.Output(ctx, "pactl", getCmd)
	name := strings.TrimSpace(string(output))
	if err != nil || name == "" {
		if err == nil {
			err = fmt.Errorf("empty %s result", getCmd)
		}
		return "", fmt.Errorf("default %s endpoint: %w: %v", role, ErrEndpointUnavailable, err)
	}

	flag := "0"
	if muted {
		flag = "1"
	}
	if _, err := e.run.Output(ctx, "pactl", setCmd, name, flag); err != nil {
		return "", fmt.Errorf("failed to set mute=%t on %s endpoint %s: %w", muted, role, name, err)
	}
	return name, nil
}

// setAmixer toggles the ALSA Capture switch or the Master playback switch
func (e *CommandEndpoints) setAmixer(ctx context.Context, role EndpointRole, muted bool) (string, error) {
	control, state := "Capture", "cap"
	if muted {
		state = "nocap"
	}
	if role == RoleRender {
		control, state = "Master", "unmute"
		if muted {
			state = "mute"
		}
	}

	if _, err := e.run.Output(ctx, "amixer", "sget", control); err != nil {
		return "", fmt.Errorf("default %s endpoint: %w: %v", role, ErrEndpointUnavailable, err)
	}
	if _, err := e.run.Output(ctx, "amixer", "-q", "sset", control, state); err != nil {
		return "", fmt.Errorf("failed to set mute=%t on %s control %s: %w", muted, role, control, err)
	}
	return control, nil
}
