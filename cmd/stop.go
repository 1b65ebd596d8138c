package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/callguide/internal/recording"
	"github.com/audiolibrelab/callguide/internal/signalfile"

	"github.com/spf13/cobra"
)

var stopTimeout time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running recorder to stop and wait for it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		wait := cfg.Recording.StopTimeout
		if stopTimeout > 0 {
			wait = stopTimeout
		}

		signals := signalfile.New(cfg.Signal.Directory, signalfile.WithPollInterval(cfg.Recording.PollInterval))
		outcome, err := recording.Stop(ctx, signals, wait)
		if err != nil {
			return fmt.Errorf("failed to stop recorder: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Recorder: %s\n", outcome)
		return nil
	},
}

func init() {
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "how long to wait for the recorder to exit (overrides recording.stop_timeout)")
}
