package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"searchtrack/internal/config"
	"searchtrack/internal/connectors"
	"searchtrack/internal/logging"
	"searchtrack/internal/pipeline"
	"searchtrack/internal/server"
	"searchtrack/internal/util"
)

type app struct {
	cfg     config.Config
	log     zerolog.Logger
	backend *connectors.Backend
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "searchtrack",
		Short:         "Search tracking webhook and table store tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.backend == nil {
				return nil
			}
			return a.backend.Close()
		},
	}

	root.AddCommand(a.serveCmd(), a.ingestCmd(), a.exportCmd(), a.pruneCmd(), a.clearCmd(), a.runsCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	must(root.ExecuteContext(ctx))
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg, "searchtrack")

	backend, err := connectors.Open(ctx, cfg)
	if err != nil {
		return err
	}
	a.backend = backend
	return nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	dates := util.NewDateNormalizer(a.cfg.DisplayZone)
	dates.OnFault = func(input string, err error) {
		a.log.Debug().Str("input", input).Err(err).Msg("unreadable date kept verbatim")
	}
	return pipeline.New(a.backend.Table, a.cfg,
		pipeline.WithTransformer(pipeline.NewTransformer(dates, a.cfg.AnonEmailDomain)),
		pipeline.WithObserver(pipeline.Observers{
			pipeline.LogObserver{Log: a.log},
			pipeline.RunRecorder{DB: a.backend.Runs, Log: a.log},
		}),
	)
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := server.NewService(a.cfg, a.pipeline(), a.log)
			return svc.Run(cmd.Context())
		},
	}
}

func (a *app) ingestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one webhook payload from a file (or - for stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(file) == "" {
				return fmt.Errorf("--file is required")
			}
			body, err := readInput(file)
			if err != nil {
				return err
			}
			resp, handleErr := a.pipeline().Handle(cmd.Context(), body, time.Now())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			return handleErr
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "payload JSON path")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export:xlsx",
		Short: "Export the stored table to an xlsx workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(out) == "" {
				out = filepath.Join(a.cfg.OutputDir, fmt.Sprintf("search_tracking_%s.xlsx", time.Now().Format("20060102_150405")))
			}
			n, err := pipeline.ExportStoreToXLSX(cmd.Context(), a.backend.Table, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output xlsx path (default: OUTPUT_DIR/search_tracking_<time>.xlsx)")
	return cmd
}

func (a *app) pruneCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove rows older than --days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				days = a.cfg.RetentionDays
			}
			rw, err := a.backend.Rewriter()
			if err != nil {
				return err
			}
			now := time.Now()
			res, err := pipeline.Prune(cmd.Context(), rw, days, now)
			if err != nil {
				return err
			}
			if err := a.backend.Runs.SetMetadata("prune.last_run", now.UTC().Format(time.RFC3339)); err != nil {
				a.log.Warn().Err(err).Msg("failed to record prune time")
			}
			a.log.Info().Int("days", days).Int("kept", res.Kept).Int("removed", res.Removed).Msg("prune done")
			fmt.Fprintf(cmd.OutOrStdout(), "prune done kept=%d removed=%d\n", res.Kept, res.Removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days to keep (default: RETENTION_DAYS)")
	return cmd
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every row, header included",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rw, err := a.backend.Rewriter()
			if err != nil {
				return err
			}
			if err := rw.Clear(cmd.Context()); err != nil {
				return err
			}
			a.log.Info().Str("backend", a.backend.Name).Msg("table cleared")
			fmt.Fprintln(cmd.OutOrStdout(), "table cleared")
			return nil
		},
	}
}

func (a *app) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingest runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.backend.Runs.ListRuns(limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-6s %s processed=%d skipped=%d total=%d\n",
					r.CreatedAt, r.Kind, r.TraceID, r.Counts["processed"], r.Counts["skipped"], r.Counts["total"])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
