package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retake/internal/fileutil"
	"retake/internal/logging"
	"retake/internal/reassembly"
	"retake/internal/timeline"
)

func newFlattenCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "flatten <recording>...",
		Short: "Join recordings end to end into one WebM file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(output) == "" {
				return fmt.Errorf("--output is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			prober := newProber(cfg)

			var segments []timeline.Segment
			var at time.Duration
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				duration, err := prober.Probe(cmd.Context(), data)
				if err != nil {
					return fmt.Errorf("probe %s: %w", path, err)
				}
				seg := timeline.NewSegment(data, duration, timeline.TrackVideo)
				seg.Start = at
				seg.End = at + duration
				segments = append(segments, seg)
				at = seg.End
			}
			tl, err := timeline.FromSegments("", segments, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sampler := logging.NewProgressSampler(0)
			artifact, err := newPipeline(cfg, logger).Flatten(cmd.Context(), tl, exportBudget(cfg), func(p reassembly.Progress) {
				if sampler.ShouldLog(p.Percent, string(p.Phase)) {
					fmt.Fprintf(out, "  %s: %s\n", p.Phase, p.Message)
				}
			})
			if err != nil {
				return err
			}
			digest, err := fileutil.WriteFileAtomic(output, artifact.Data, 0o644)
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "Wrote %s (%d bytes, %s, sha256 %s)\n",
				output, artifact.Size(), timeline.FormatSeconds(tl.Duration()), digest[:12])
			for _, w := range artifact.Warnings {
				fmt.Fprintf(out, "warning: %v\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination WebM file")
	return cmd
}
