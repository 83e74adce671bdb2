package main

import (
	"github.com/spf13/cobra"
)

const (
	groupEditing = "editing"
	groupReview  = "review"
	groupSetup   = "setup"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "retake",
		Short:         "Record, cut, re-record, and submit demonstrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupEditing, Title: "Editing:"},
		&cobra.Group{ID: groupReview, Title: "Review:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)
	for group, cmds := range map[string][]*cobra.Command{
		groupEditing: {newEditCommand(ctx), newFlattenCommand(ctx), newProbeCommand(ctx)},
		groupReview:  {newSubmissionsCommand(ctx)},
		groupSetup:   {newConfigCommand(ctx), newDoctorCommand(ctx)},
	} {
		for _, cmd := range cmds {
			cmd.GroupID = group
			rootCmd.AddCommand(cmd)
		}
	}
	rootCmd.SetHelpCommandGroupID(groupSetup)
	rootCmd.SetCompletionCommandGroupID(groupSetup)
	return rootCmd
}
