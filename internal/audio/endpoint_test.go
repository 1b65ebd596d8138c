package audio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and answers from a canned table keyed by the joined command line
type fakeRunner struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]string
	failures  map[string]error
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, line)
	f.mu.Unlock()
	if err, ok := f.failures[line]; ok {
		return nil, err
	}
	return []byte(f.responses[line]), nil
}

func TestCommandEndpoints_PactlMuteResolvesDefaultSource(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"pactl get-default-source": "alsa_input.usb-headset\n",
	}}
	e, err := NewCommandEndpoints("pactl", WithCommandRunner(runner))
	require.NoError(t, err)

	require.NoError(t, e.Mute(context.Background(), RoleCapture))
	require.NoError(t, e.Unmute(context.Background(), RoleCapture))

	assert.Equal(t, []string{
		"pactl get-default-source",
		"pactl set-source-mute alsa_input.usb-headset 1",
		"pactl get-default-source",
		"pactl set-source-mute alsa_input.usb-headset 0",
	}, runner.calls)
}

func TestCommandEndpoints_PactlRenderUsesSink(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"pactl get-default-sink": "alsa_output.pci-analog-stereo",
	}}
	e, err := NewCommandEndpoints("PACTL", WithCommandRunner(runner))
	require.NoError(t, err)

	require.NoError(t, e.Mute(context.Background(), RoleRender))
	assert.Contains(t, runner.calls, "pactl set-sink-mute alsa_output.pci-analog-stereo 1")
}

func TestCommandEndpoints_NoDefaultEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{
			name:   "empty default",
			runner: &fakeRunner{responses: map[string]string{}},
		},
		{
			name: "query fails",
			runner: &fakeRunner{failures: map[string]error{
				"pactl get-default-source": errors.New("connection refused"),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewCommandEndpoints("pactl", WithCommandRunner(tt.runner))
			require.NoError(t, err)

			err = e.Mute(context.Background(), RoleCapture)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEndpointUnavailable)
			assert.Len(t, tt.runner.calls, 1, "no mutation after a failed resolve")
		})
	}
}

func TestCommandEndpoints_SetFailureIsNotUnavailable(t *testing.T) {
	runner := &fakeRunner{
		responses: map[string]string{"pactl get-default-source": "mic"},
		failures:  map[string]error{"pactl set-source-mute mic 1": errors.New("exit status 1")},
	}
	e, err := NewCommandEndpoints("pactl", WithCommandRunner(runner))
	require.NoError(t, err)

	err = e.Mute(context.Background(), RoleCapture)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEndpointUnavailable)
}

func TestCommandEndpoints_Amixer(t *testing.T) {
	runner := &fakeRunner{}
	e, err := NewCommandEndpoints("amixer", WithCommandRunner(runner))
	require.NoError(t, err)

	require.NoError(t, e.Mute(context.Background(), RoleCapture))
	require.NoError(t, e.Mute(context.Background(), RoleRender))
	require.NoError(t, e.Unmute(context.Background(), RoleRender))

	assert.Equal(t, []string{
		"amixer sget Capture",
		"amixer -q sset Capture nocap",
		"amixer sget Master",
		"amixer -q sset Master mute",
		"amixer sget Master",
		"amixer -q sset Master unmute",
	}, runner.calls)
}

func TestNewCommandEndpoints_UnknownBackend(t *testing.T) {
	_, err := NewCommandEndpoints("wasapi")
	assert.Error(t, err)
}

func TestCommandEndpoints_UnknownRole(t *testing.T) {
	runner := &fakeRunner{}
	e, err := NewCommandEndpoints("pactl", WithCommandRunner(runner))
	require.NoError(t, err)

	assert.Error(t, e.Mute(context.Background(), EndpointRole("loopback")))
	assert.Empty(t, runner.calls)
}
