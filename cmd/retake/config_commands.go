package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"retake/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create, check, and print the configuration",
	}
	configCmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return configCmd
}

// initTarget resolves where config init writes, defaulting to the user
// config path.
func initTarget(flagValue string) (string, error) {
	if target := strings.TrimSpace(flagValue); target != "" {
		return config.ExpandPath(target)
	}
	return config.DefaultConfigPath()
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check config path: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set capture.adapter = \"ffmpeg\" and the device inputs to record from local hardware.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and create its directories",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			source := path
			if !exists {
				source = path + " (not found; defaults used)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFields([][2]string{
				{"Config", source},
				{"Capture adapter", cfg.Capture.Adapter},
				{"Prober", cfg.Capture.Prober},
				{"Submissions", cfg.Paths.SubmissionsDir},
			}))
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
			return nil
		},
	}
}

// newConfigShowCommand prints the effective configuration after defaults,
// path expansion, and environment overrides.
func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
