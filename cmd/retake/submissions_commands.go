package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retake/internal/config"
	"retake/internal/submission"
	"retake/internal/timeline"
)

const submissionTimeFormat = "2006-01-02 15:04"

type submissionOutput struct {
	ID              string       `json:"id"`
	TimelineID      string       `json:"timeline_id"`
	Source          string       `json:"source"`
	Status          string       `json:"status"`
	DurationSeconds float64      `json:"duration_seconds"`
	ArtifactPath    string       `json:"artifact_path"`
	ArtifactBytes   int64        `json:"artifact_bytes"`
	ArtifactSHA256  string       `json:"artifact_sha256"`
	Feedback        string       `json:"feedback,omitempty"`
	Notes           []noteOutput `json:"notes,omitempty"`
	NoteCount       int          `json:"note_count"`
	CreatedAt       time.Time    `json:"created_at"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`
}

type noteOutput struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Text             string  `json:"text"`
	Rendered         string  `json:"rendered"`
}

func toSubmissionOutput(s *submission.Submission) submissionOutput {
	out := submissionOutput{
		ID:              s.ID,
		TimelineID:      s.TimelineID,
		Source:          s.SourceName,
		Status:          string(s.Status),
		DurationSeconds: s.Duration.Seconds(),
		ArtifactPath:    s.ArtifactPath,
		ArtifactBytes:   s.ArtifactBytes,
		ArtifactSHA256:  s.ArtifactSHA256,
		Feedback:        s.Feedback,
		NoteCount:       s.NoteCount,
		CreatedAt:       s.CreatedAt,
		ReviewedAt:      s.ReviewedAt,
	}
	for _, n := range s.Notes {
		out.Notes = append(out.Notes, noteOutput{
			TimestampSeconds: n.Timestamp.Seconds(),
			Text:             n.Text,
			Rendered:         n.Rendered,
		})
	}
	return out
}

func newSubmissionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submissions",
		Aliases: []string{"sub"},
		Short:   "Inspect and review stored submissions",
	}

	cmd.AddCommand(newSubmissionsListCommand(ctx))
	cmd.AddCommand(newSubmissionsPendingCommand(ctx))
	cmd.AddCommand(newSubmissionsShowCommand(ctx))
	cmd.AddCommand(newSubmissionsReviewCommand(ctx))
	cmd.AddCommand(newSubmissionsReopenCommand(ctx))
	cmd.AddCommand(newSubmissionsExportCommand(ctx))
	cmd.AddCommand(newSubmissionsRemoveCommand(ctx))
	return cmd
}

func newSubmissionsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]submission.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, err := submission.ParseStatus(value)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, store *submission.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				return printSubmissions(cmd, items, jsonOutput)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, reviewed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func newSubmissionsPendingCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List submissions awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *submission.Store) error {
				items, err := store.Pending(cmd.Context())
				if err != nil {
					return err
				}
				return printSubmissions(cmd, items, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func printSubmissions(cmd *cobra.Command, items []*submission.Submission, jsonOutput bool) error {
	if jsonOutput {
		out := make([]submissionOutput, 0, len(items))
		for _, item := range items {
			out = append(out, toSubmissionOutput(item))
		}
		return writeJSON(cmd, out)
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No submissions")
		return nil
	}
	headers := []string{"ID", "Source", "Status", "Duration", "Notes", "Created"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.SourceName,
			string(item.Status),
			timeline.FormatSeconds(item.Duration),
			strconv.Itoa(item.NoteCount),
			item.CreatedAt.Local().Format(submissionTimeFormat),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 3, 4))
	return nil
}

func newSubmissionsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a submission with its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *submission.Store) error {
				item, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, toSubmissionOutput(item))
				}
				fields := [][2]string{
					{"ID", item.ID},
					{"Source", item.SourceName},
					{"Status", string(item.Status)},
					{"Duration", timeline.FormatSeconds(item.Duration)},
					{"Artifact", item.ArtifactPath},
					{"Artifact Size", strconv.FormatInt(item.ArtifactBytes, 10) + " bytes"},
					{"SHA-256", item.ArtifactSHA256},
					{"Created", item.CreatedAt.Local().Format(submissionTimeFormat)},
				}
				if item.ReviewedAt != nil {
					fields = append(fields, [2]string{"Reviewed", item.ReviewedAt.Local().Format(submissionTimeFormat)})
				}
				if strings.TrimSpace(item.Feedback) != "" {
					fields = append(fields, [2]string{"Feedback", item.Feedback})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderFields(fields))
				if len(item.Notes) > 0 {
					fmt.Fprintln(out, "Notes:")
					for _, n := range item.Notes {
						fmt.Fprintf(out, "  %s\n", n.Rendered)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func newSubmissionsReviewCommand(ctx *commandContext) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Mark a submission reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *submission.Store) error {
				if err := store.Review(cmd.Context(), args[0], feedback); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submission %s marked reviewed\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "Reviewer feedback to store with the submission")
	return cmd
}

func newSubmissionsReopenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <id>",
		Short: "Return a reviewed submission to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *submission.Store) error {
				if err := store.SetStatus(cmd.Context(), args[0], submission.StatusPending, ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submission %s reopened\n", args[0])
				return nil
			})
		},
	}
}

func newSubmissionsExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <destination>",
		Short: "Copy a submission's artifact, verifying its checksum",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *submission.Store) error {
				if err := store.Export(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newSubmissionsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a submission and its artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *submission.Store) error {
				if err := store.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed submission %s\n", args[0])
				return nil
			})
		},
	}
}
