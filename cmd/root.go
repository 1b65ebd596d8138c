package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/callguide/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
	logFile      io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "callguide",
	Short: "Incoming-call voice guidance and call recording",
	Long: `callguide silences the operator's microphone and speaker when a call
comes in, plays a guidance clip into a virtual audio cable so the caller
hears it, and records the whole conversation in a separate process.

Typical wiring from a softphone:
  on incoming call:  callguide incoming --number <caller>
  on call end:       callguide stop`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Console logging first so config errors are visible
		setupLogging(verboseLevel, nil)

		// devices works without a config file unless one is given explicitly
		if cmd.Name() == "devices" && cfgFile == "" {
			return nil
		}

		if cfgFile == "" {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			if errors.Is(err, config.ErrConfigMissing) {
				slog.Error("Configuration file not found", "path", cfgFile)
			}
			return fmt.Errorf("failed to load config: %w", err)
		}

		setupLogging(verboseLevel, &cfg.Logging)
		slog.Debug("Configuration loaded", "file", cfg.File, "command", cmd.Name())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogging()
	},
}

// Execute runs the root command and exits with status 1 on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		closeLogging()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultFileName+" next to the executable)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(incomingCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging configures slog based on the verbose level. When logCfg names
// a file, records also go to a size-rotated log file.
func setupLogging(level int, logCfg *config.LoggingConfig) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	default:
		slogLevel = slog.LevelDebug
	}

	closeLogging()

	var w io.Writer = os.Stderr
	if logCfg != nil && logCfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   logCfg.File,
			MaxSize:    logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
		}
		logFile = rotating
		w = io.MultiWriter(os.Stderr, rotating)
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(w, opts)
	slog.SetDefault(slog.New(handler).With("pid", os.Getpid()))
}

func closeLogging() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
