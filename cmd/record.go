package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/callguide/internal/audio"
	"github.com/audiolibrelab/callguide/internal/convert"
	"github.com/audiolibrelab/callguide/internal/recording"
	"github.com/audiolibrelab/callguide/internal/signalfile"

	"github.com/spf13/cobra"
)

var recordNumber string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the call until a stop signal arrives",
	Long: `Capture the configured recording device to WAV until 'callguide stop' is
run, the safety ceiling elapses or the process is interrupted, then encode
the WAV to MP3. Normally started in the background by 'incoming'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		terminate, err := audio.InitPortAudio()
		if err != nil {
			return err
		}
		defer terminate()

		signals := signalfile.New(cfg.Signal.Directory, signalfile.WithPollInterval(cfg.Recording.PollInterval))
		transcoder := convert.NewFFmpeg(cfg.FFmpeg.Path,
			convert.WithBitrate(cfg.Recording.BitrateKbps),
			convert.WithQuality(cfg.Recording.Quality))

		recorder := recording.NewRecorder(
			cfg.Recording,
			audio.NewDirectory(audio.PortAudio{}),
			recording.PortAudioCapturer{},
			transcoder,
			signals,
		)

		res, err := recorder.Run(ctx, recordNumber)
		if err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}

		output := res.MP3Path
		if !res.Encoded {
			output = res.WAVPath
		}
		slog.Info("Recorder exiting", "session_id", res.ID, "reason", res.Reason, "output", output)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordNumber, "number", "n", "", "caller number appended to the file name")
}
