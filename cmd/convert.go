package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/callguide/internal/convert"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert WAV files in the watch folder to MP3",
	Long: `Encode every .wav file in convert.watch_folder to MP3 in
convert.output_folder, then move the source WAV into convert.backup_folder.
Files that fail stay in the watch folder for the next run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		batch := &convert.Batch{
			WatchFolder:  cfg.Convert.WatchFolder,
			OutputFolder: cfg.Convert.OutputFolder,
			BackupFolder: cfg.Convert.BackupFolder,
			Transcoder: convert.NewFFmpeg(cfg.FFmpeg.Path,
				convert.WithBitrate(cfg.Recording.BitrateKbps),
				convert.WithQuality(cfg.Recording.Quality)),
		}

		res, err := batch.Run(ctx)
		if err != nil {
			return fmt.Errorf("conversion aborted: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Converted: %d, failed: %d\n", res.Converted, res.Failed)
		if res.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to convert", res.Failed)
		}
		return nil
	},
}
