package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rmmhunt/internal/config"
	"rmmhunt/internal/hunt"
	"rmmhunt/internal/report"
	"rmmhunt/internal/rmm"
	"rmmhunt/internal/threathunt"
	"rmmhunt/internal/zeronetworks"
)

// defaultLookback is the hunt window when --from is not given.
const defaultLookback = 7 * 24 * time.Hour

var huntFlags struct {
	apiKey        string
	baseURL       string
	from          string
	to            string
	repoURL       string
	signaturesDir string
	workers       int
	pageSize      int
	output        string
	noCSV         bool
}

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Hunt activity telemetry for RMM tool indicators",
	Long: `Hunt Zero Networks network activity for every signature in the RMML
catalog. Signatures come from a local directory or, by default, a fresh
shallow clone of the RMML repository. Results are summarized on the
terminal and written to CSV.

Timestamps accept ISO 8601, for example 2026-08-01T00:00:00Z or
2026-08-01. The window defaults to the last seven days.`,
	RunE: runHunt,
}

func init() {
	rootCmd.AddCommand(huntCmd)

	huntCmd.Flags().StringVar(&huntFlags.apiKey, "api-key", "", "Zero Networks API key (env: RMMHUNT_API_KEY)")
	huntCmd.Flags().StringVar(&huntFlags.baseURL, "base-url", "", "portal base URL (default: derived from the API key)")
	huntCmd.Flags().StringVar(&huntFlags.from, "from", "", "start of the hunt window (ISO 8601)")
	huntCmd.Flags().StringVar(&huntFlags.to, "to", "", "end of the hunt window (ISO 8601)")
	huntCmd.Flags().StringVar(&huntFlags.repoURL, "repo-url", "", "RMML signature repository to clone")
	huntCmd.Flags().StringVar(&huntFlags.signaturesDir, "signatures-dir", "", "local signature directory (skips cloning)")
	huntCmd.Flags().IntVar(&huntFlags.workers, "workers", 0, "concurrent signature hunts")
	huntCmd.Flags().IntVar(&huntFlags.pageSize, "page-size", 0, "activity page size per API request")
	huntCmd.Flags().StringVar(&huntFlags.output, "output", "", "CSV output path")
	huntCmd.Flags().BoolVar(&huntFlags.noCSV, "no-csv", false, "skip writing the CSV file")
}

// huntConfig layers the hunt flags over the loaded configuration.
func huntConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey = huntFlags.apiKey
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = huntFlags.baseURL
	}
	if flags.Changed("repo-url") {
		cfg.RepoURL = huntFlags.repoURL
	}
	if flags.Changed("signatures-dir") {
		cfg.SignaturesDir = huntFlags.signaturesDir
	}
	if flags.Changed("workers") {
		cfg.Workers = huntFlags.workers
	}
	if flags.Changed("page-size") {
		cfg.PageSize = huntFlags.pageSize
	}
	if flags.Changed("output") {
		cfg.Output = huntFlags.output
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key required (use --api-key flag or RMMHUNT_API_KEY env var)")
	}
	return cfg, nil
}

// huntWindow resolves the --from/--to flags to epoch milliseconds.
func huntWindow(now time.Time) (int64, int64, error) {
	from := now.Add(-defaultLookback).UnixMilli()
	to := now.UnixMilli()

	var err error
	if huntFlags.from != "" {
		if from, err = threathunt.ParseISO8601(huntFlags.from); err != nil {
			return 0, 0, fmt.Errorf("parsing --from: %w", err)
		}
	}
	if huntFlags.to != "" {
		if to, err = threathunt.ParseISO8601(huntFlags.to); err != nil {
			return 0, 0, fmt.Errorf("parsing --to: %w", err)
		}
	}
	if from >= to {
		return 0, 0, fmt.Errorf("--from (%s) must be before --to (%s)",
			threathunt.FormatEpochMillis(from), threathunt.FormatEpochMillis(to))
	}
	return from, to, nil
}

func runHunt(cmd *cobra.Command, args []string) error {
	cfg, err := huntConfig(cmd)
	if err != nil {
		return err
	}
	from, to, err := huntWindow(time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sigDir := cfg.SignaturesDir
	if sigDir == "" {
		tmp, err := os.MkdirTemp("", "rmmhunt-rmml-")
		if err != nil {
			return fmt.Errorf("creating temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		if sigDir, err = rmm.CloneRepo(ctx, cfg.RepoURL, tmp, logger.Named("rmm")); err != nil {
			return fmt.Errorf("cloning signature repository: %w", err)
		}
	}

	sigs, err := rmm.LoadDir(sigDir, logger.Named("rmm"))
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	api, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	hunter, err := threathunt.NewHunter(ctx, api,
		threathunt.WithPageSize(cfg.PageSize),
		threathunt.WithLogger(logger.Named("hunter")))
	if err != nil {
		return fmt.Errorf("initializing hunter: %w", err)
	}

	ops := hunt.NewOps(hunter, sigs,
		hunt.WithWorkers(cfg.Workers),
		hunt.WithLogger(logger.Named("hunt")))

	fmt.Fprintf(cmd.OutOrStdout(), "Hunting %d signatures from %s to %s\n",
		len(sigs), threathunt.FormatEpochMillis(from), threathunt.FormatEpochMillis(to))

	results, activities, err := ops.Execute(ctx, from, to)
	if err != nil {
		return err
	}

	stats := report.BuildStats(len(sigs), results, activities)
	report.PrintSummary(cmd.OutOrStdout(), stats)

	if !huntFlags.noCSV && len(activities) > 0 {
		written, err := report.WriteCSV(cfg.Output, activities)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nWrote %d activities to %s\n", len(activities), written)
	}
	return nil
}

func newAPIClient(cfg *config.Config) (*zeronetworks.Client, error) {
	opts := []zeronetworks.Option{
		zeronetworks.WithTimeout(cfg.Timeout),
		zeronetworks.WithMaxRetries(cfg.MaxRetries),
		zeronetworks.WithLogger(logger.Named("api")),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, zeronetworks.WithBaseURL(cfg.BaseURL))
	}
	api, err := zeronetworks.New(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing api client: %w", err)
	}
	return api, nil
}
