package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"retake/internal/media/ffprobe"
	"retake/internal/media/webm"
	"retake/internal/timeline"
)

type probeOutput struct {
	Path            string  `json:"path"`
	Bytes           int     `json:"bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	VideoCodec      string  `json:"video_codec,omitempty"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
	Frames          int     `json:"frames,omitempty"`
	Prober          string  `json:"prober"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Report the duration and tracks of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			result := probeOutput{Path: path, Bytes: len(data), Prober: cfg.Capture.Prober}
			if cfg.Capture.Prober == "ffprobe" {
				info, err := ffprobe.Inspect(cmd.Context(), cfg.Capture.FFprobeBinary, path)
				if err != nil {
					return err
				}
				duration, err := info.Duration()
				if err != nil {
					return err
				}
				result.DurationSeconds = duration.Seconds()
				for _, s := range info.Streams {
					switch s.CodecType {
					case "video":
						result.VideoCodec = s.CodecName
					case "audio":
						result.AudioCodec = s.CodecName
					}
				}
			} else {
				info, err := webm.Inspect(data)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", path, err)
				}
				result.DurationSeconds = info.Duration.Seconds()
				result.VideoCodec = info.VideoCodec
				result.AudioCodec = info.AudioCodec
				result.Frames = info.Frames
			}

			if jsonOutput {
				return writeJSON(cmd, result)
			}
			fields := [][2]string{
				{"File", path},
				{"Size", strconv.Itoa(result.Bytes) + " bytes"},
				{"Duration", timeline.FormatSeconds(timeline.Seconds(result.DurationSeconds))},
				{"Video", orNone(result.VideoCodec)},
				{"Audio", orNone(result.AudioCodec)},
			}
			if result.Frames > 0 {
				fields = append(fields, [2]string{"Frames", strconv.Itoa(result.Frames)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFields(fields))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func orNone(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
