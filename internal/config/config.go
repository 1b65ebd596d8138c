package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFileName is the config file looked up next to the executable.
const DefaultFileName = "callguide.yaml"

// ErrConfigMissing indicates the backing config file does not exist.
var ErrConfigMissing = errors.New("configuration file not found")

// PlaybackMode selects which output devices receive the guidance clip.
type PlaybackMode string

const (
	PlaybackCableOnly             PlaybackMode = "cable_only"
	PlaybackCableAndDefaultOutput PlaybackMode = "cable_and_default_output"
)

type Config struct {
	General   GeneralConfig   `mapstructure:"general" yaml:"general"`
	Audio     AudioConfig     `mapstructure:"audio" yaml:"audio"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Signal    SignalConfig    `mapstructure:"signal" yaml:"signal"`
	Convert   ConvertConfig   `mapstructure:"convert" yaml:"convert"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`

	// BaseDir is the directory relative paths are resolved against.
	BaseDir string `mapstructure:"-" yaml:"-"`
	// File is the config file the values were read from.
	File string `mapstructure:"-" yaml:"-"`
}

type GeneralConfig struct {
	GuidanceFile string `mapstructure:"guidance_file" yaml:"guidance_file"`
}

type AudioConfig struct {
	VirtualCableName string       `mapstructure:"virtual_cable_name" yaml:"virtual_cable_name"`
	PlaybackMode     PlaybackMode `mapstructure:"playback_mode" yaml:"playback_mode"`
	EndpointBackend  string       `mapstructure:"endpoint_backend" yaml:"endpoint_backend"` // "pactl", "amixer"
}

type RecordingConfig struct {
	Enabled            bool          `mapstructure:"enabled" yaml:"enabled"`
	OutputFolder       string        `mapstructure:"output_folder" yaml:"output_folder"`
	RecordingDevice    string        `mapstructure:"recording_device" yaml:"recording_device"`
	MaxDurationMinutes float64       `mapstructure:"max_duration_minutes" yaml:"max_duration_minutes"`
	Channels           int           `mapstructure:"channels" yaml:"channels"`
	BitrateKbps        int           `mapstructure:"bitrate_kbps" yaml:"bitrate_kbps"`
	Quality            int           `mapstructure:"quality" yaml:"quality"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	StopTimeout        time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

type SignalConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type ConvertConfig struct {
	WatchFolder  string `mapstructure:"watch_folder" yaml:"watch_folder"`
	OutputFolder string `mapstructure:"output_folder" yaml:"output_folder"`
	BackupFolder string `mapstructure:"backup_folder" yaml:"backup_folder"`
}

type FFmpegConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// MaxDuration returns the recorder safety ceiling.
func (r RecordingConfig) MaxDuration() time.Duration {
	return time.Duration(r.MaxDurationMinutes * float64(time.Minute))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.guidance_file", "guidance.wav")
	v.SetDefault("audio.virtual_cable_name", "CABLE Input")
	v.SetDefault("audio.playback_mode", string(PlaybackCableOnly))
	v.SetDefault("audio.endpoint_backend", "pactl")
	v.SetDefault("recording.enabled", true)
	v.SetDefault("recording.output_folder", filepath.Join("~", "CallRecordings"))
	v.SetDefault("recording.recording_device", "VoiceMeeter Output")
	v.SetDefault("recording.max_duration_minutes", 120)
	v.SetDefault("recording.channels", 2)
	v.SetDefault("recording.bitrate_kbps", 128)
	v.SetDefault("recording.quality", 2)
	v.SetDefault("recording.poll_interval", "500ms")
	v.SetDefault("recording.stop_timeout", "30s")
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("logging.file", "call_helper.log")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
}

// ExecutableDir returns the directory holding the running binary.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// DefaultPath returns the config path next to the executable.
func DefaultPath() string {
	return filepath.Join(ExecutableDir(), DefaultFileName)
}

// Load reads and validates configFile. Relative paths inside the file are
// resolved against the directory that contains it.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = DefaultPath()
	}

	info, err := os.Stat(configFile)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%s: %w", configFile, ErrConfigMissing)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("CALLGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	abs, err := filepath.Abs(configFile)
	if err != nil {
		abs = configFile
	}
	cfg.File = abs
	cfg.BaseDir = filepath.Dir(abs)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// resolvePaths expands tildes and anchors relative paths at BaseDir
func (c *Config) resolvePaths() {
	c.General.GuidanceFile = c.Resolve(c.General.GuidanceFile)
	c.Recording.OutputFolder = c.Resolve(c.Recording.OutputFolder)
	if c.Signal.Directory == "" {
		c.Signal.Directory = c.BaseDir
	}
	c.Signal.Directory = c.Resolve(c.Signal.Directory)
	c.Convert.WatchFolder = c.Resolve(c.Convert.WatchFolder)
	c.Convert.OutputFolder = c.Resolve(c.Convert.OutputFolder)
	c.Convert.BackupFolder = c.Resolve(c.Convert.BackupFolder)
	c.Logging.File = c.Resolve(c.Logging.File)
}

// Resolve expands a leading tilde and makes a relative path absolute
// against BaseDir. Empty paths stay empty.
func (c *Config) Resolve(path string) string {
	if path == "" {
		return ""
	}
	path = expandPath(path)
	if filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate checks the values that the guidance and recorder flows depend on.
func (c *Config) Validate() error {
	if c.General.GuidanceFile == "" {
		return fmt.Errorf("general.guidance_file is required")
	}
	if strings.TrimSpace(c.Audio.VirtualCableName) == "" {
		return fmt.Errorf("audio.virtual_cable_name is required")
	}

	switch c.Audio.PlaybackMode {
	case PlaybackCableOnly, PlaybackCableAndDefaultOutput:
	default:
		return fmt.Errorf("audio.playback_mode must be '%s' or '%s', got: %s",
			PlaybackCableOnly, PlaybackCableAndDefaultOutput, c.Audio.PlaybackMode)
	}

	switch strings.ToLower(c.Audio.EndpointBackend) {
	case "pactl", "amixer":
	default:
		return fmt.Errorf("audio.endpoint_backend must be 'pactl' or 'amixer', got: %s", c.Audio.EndpointBackend)
	}

	if c.Recording.Enabled {
		if c.Recording.OutputFolder == "" {
			return fmt.Errorf("recording.output_folder is required when recording is enabled")
		}
		if strings.TrimSpace(c.Recording.RecordingDevice) == "" {
			return fmt.Errorf("recording.recording_device is required when recording is enabled")
		}
	}
	if c.Recording.MaxDurationMinutes <= 0 {
		return fmt.Errorf("recording.max_duration_minutes must be > 0, got: %g", c.Recording.MaxDurationMinutes)
	}
	if c.Recording.Channels < 1 || c.Recording.Channels > 2 {
		return fmt.Errorf("recording.channels must be 1 or 2, got: %d", c.Recording.Channels)
	}
	if c.Recording.BitrateKbps <= 0 {
		return fmt.Errorf("recording.bitrate_kbps must be > 0, got: %d", c.Recording.BitrateKbps)
	}
	if c.Recording.Quality < 0 || c.Recording.Quality > 9 {
		return fmt.Errorf("recording.quality must be between 0 and 9, got: %d", c.Recording.Quality)
	}
	if c.Recording.PollInterval <= 0 {
		return fmt.Errorf("recording.poll_interval must be > 0, got: %s", c.Recording.PollInterval)
	}
	if c.Recording.StopTimeout <= 0 {
		return fmt.Errorf("recording.stop_timeout must be > 0, got: %s", c.Recording.StopTimeout)
	}

	return nil
}
