package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/audiolibrelab/callguide/internal/audio"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio devices",
	Long: `List every audio device PortAudio can see, with its input and output
channel counts. Use the names (or any unique part of them) for
audio.virtual_cable_name and recording.recording_device.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		terminate, err := audio.InitPortAudio()
		if err != nil {
			return err
		}
		defer terminate()

		devices, err := audio.NewDirectory(audio.PortAudio{}).List()
		if err != nil {
			return err
		}

		var cable, recorder string
		if cfg != nil {
			cable, recorder = cfg.Audio.VirtualCableName, cfg.Recording.RecordingDevice
		}
		printDevices(cmd.OutOrStdout(), devices, cable, recorder)
		return nil
	},
}

// printDevices writes the device table, marking the configured cable and
// recording device the same way Directory would pick them.
func printDevices(w io.Writer, devices []audio.Device, cable, recorder string) {
	fmt.Fprintf(w, "🎵 Audio Devices (%s)\n", runtime.GOOS)
	fmt.Fprintf(w, "═══════════════════════════════════════\n\n")

	cableDev, hasCable := audio.Match(devices, cable, audio.DirectionOutput)
	recDev, hasRec := audio.Match(devices, recorder, audio.DirectionInput)

	fmt.Fprintf(w, "📋 DEVICES (%d found):\n", len(devices))
	for _, d := range devices {
		mark := ""
		if hasCable && d.Index == cableDev.Index {
			mark += "  ← virtual cable"
		}
		if hasRec && d.Index == recDev.Index {
			mark += "  ← recording device"
		}
		fmt.Fprintf(w, "  [%2d] %-48s in:%-2d out:%-2d %6.0f Hz  %s%s\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, d.HostAPI, mark)
	}

	if cable != "" && !hasCable {
		fmt.Fprintf(w, "\n⚠️  No output device matches virtual_cable_name %q\n", cable)
	}
	if recorder != "" && !hasRec {
		fmt.Fprintf(w, "⚠️  No input device matches recording_device %q\n", recorder)
	}
	fmt.Fprintln(w)
}
