package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"retake/internal/deps"
	"retake/internal/logging"
	"retake/internal/preflight"
	"retake/internal/session"
	"retake/internal/staging"
	"retake/internal/submission"
	"retake/internal/timeline"
)

// Staging files older than this belong to sessions that did not exit cleanly.
const staleStagingAge = 24 * time.Hour

func newEditCommand(ctx *commandContext) *cobra.Command {
	var scriptPath string
	var sourceName string

	cmd := &cobra.Command{
		Use:   "edit <recording>",
		Short: "Open an edit session over a recording",
		Long: "Open an edit session over a recording. Commands are read from stdin, or\n" +
			"from --script, one per line; type 'help' inside the editor for the list.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			base, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if missing := deps.Missing(preflight.CheckSystemDeps(cmd.Context(), cfg)); len(missing) > 0 {
				names := make([]string, 0, len(missing))
				for _, m := range missing {
					names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
				}
				return fmt.Errorf("missing required dependencies: %s; run `retake doctor`", strings.Join(names, ", "))
			}

			sessionID := uuid.NewString()
			logger, logPath, closeLog, err := logging.OpenSessionLog(base, cfg.Paths.LogDir, sessionID)
			if err != nil {
				return err
			}
			defer closeLog()
			logging.PruneSessionLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)
			staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, staleStagingAge, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			prober := newProber(cfg)
			recording := args[0]
			tl, err := loadRecording(runCtx, prober, recording)
			if err != nil {
				return err
			}
			if strings.TrimSpace(sourceName) == "" {
				sourceName = filepath.Base(recording)
			}

			store, err := submission.Open(cfg)
			if err != nil {
				return fmt.Errorf("open submissions: %w", err)
			}
			defer store.Close()

			adapter, files := newAdapter(cfg, logger)
			ctrl, err := session.New(tl, session.Options{
				Pipeline:   newPipeline(cfg, logger),
				Capture:    adapter,
				Prober:     prober,
				Saver:      store,
				Logger:     logger,
				SourceName: sourceName,
				Window:     cfg.Selection.DefaultWindow(),
				Preview:    previewBudget(cfg),
				Export:     exportBudget(cfg),
			})
			if err != nil {
				return err
			}
			go func() {
				<-runCtx.Done()
				ctrl.Cancel()
			}()

			out := cmd.OutOrStdout()
			var in io.Reader = cmd.InOrStdin()
			ed := &editor{ctrl: ctrl, files: files, out: out}
			if scriptPath != "" {
				f, err := os.Open(scriptPath)
				if err != nil {
					return fmt.Errorf("open script: %w", err)
				}
				defer f.Close()
				in = f
				ed.strict = true
			} else {
				ed.prompt = isTerminal(in)
			}

			logger.Info("edit session started",
				logging.String("recording", recording),
				logging.String(logging.FieldTimelineID, tl.ID()),
				logging.Duration("duration", tl.Duration()),
				logging.String("session_log", logPath),
			)
			fmt.Fprintf(out, "Editing %s (%s). Type 'help' for commands.\n", sourceName, timeline.FormatSeconds(tl.Duration()))
			err = ed.run(runCtx, in)
			ctrl.Cancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "Read editor commands from a file and stop at the first failure")
	cmd.Flags().StringVar(&sourceName, "source-name", "", "Name recorded for the original recording (defaults to the file name)")
	return cmd
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
