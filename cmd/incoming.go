package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/audiolibrelab/callguide/internal/guidance"
	"github.com/audiolibrelab/callguide/internal/play"
	"github.com/audiolibrelab/callguide/internal/recording"

	"github.com/spf13/cobra"
)

var incomingNumber string

var incomingCmd = &cobra.Command{
	Use:   "incoming",
	Short: "Play the guidance clip for an incoming call",
	Long: `Mute the microphone and speaker, play the guidance clip into the
virtual cable (and the default output in cable_and_default_output mode),
start the call recorder in the background, then restore the mute state.

Guidance failures are logged and never change the exit status.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		terminate, err := audio.InitPortAudio()
		if err != nil {
			return err
		}
		defer terminate()

		endpoints, err := audio.NewCommandEndpoints(cfg.Audio.EndpointBackend)
		if err != nil {
			return fmt.Errorf("failed to create endpoint control: %w", err)
		}

		var spawner recording.Spawner
		if cfg.Recording.Enabled {
			s, err := recording.NewExecSpawner(cfg.File)
			if err != nil {
				slog.Error("Recorder cannot be started, continuing without recording", "error", err)
			} else {
				spawner = s
			}
		}

		orchestrator := guidance.New(
			cfg,
			audio.NewDirectory(audio.PortAudio{}),
			endpoints,
			play.NewCoordinator(play.PortAudioSink{}),
			spawner,
		)

		report := orchestrator.Run(ctx, incomingNumber)
		slog.Debug("Guidance report",
			"run_id", report.RunID,
			"states", fmt.Sprint(report.States),
			"recorder_pid", report.RecorderPID)
		return nil
	},
}

func init() {
	incomingCmd.Flags().StringVarP(&incomingNumber, "number", "n", "", "caller number (logged and used in the recording file name)")
}
