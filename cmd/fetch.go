package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docfetch/docfetch/internal/clock/system"
	"github.com/docfetch/docfetch/internal/config"
	"github.com/docfetch/docfetch/internal/doctype"
	"github.com/docfetch/docfetch/internal/fetch"
	"github.com/docfetch/docfetch/internal/id/uuid"
	"github.com/docfetch/docfetch/internal/logging"
	"github.com/docfetch/docfetch/internal/metrics"
	"github.com/docfetch/docfetch/internal/retry"
	"github.com/docfetch/docfetch/internal/search"
	"github.com/docfetch/docfetch/internal/store"
)

type fetchFlags struct {
	subject       string
	outputDir     string
	maxDocuments  int
	workers       int
	types         []string
	engine        string
	metricsListen string
}

// newFetchCmd creates and configures the 'fetch' subcommand.
func newFetchCmd() *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one search-and-download session",
		Long: `Runs a single session: builds per-type search queries for the subject,
pulls candidate URLs from the configured engine (falling back to the others),
and downloads them concurrently until the document target is met.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetchCommand(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.subject, "subject", "s", "", "subject to search for (required)")
	cmd.Flags().StringVarP(&flags.outputDir, "dir", "d", "", "output directory (default: downloads_<timestamp>_<id>)")
	cmd.Flags().IntVarP(&flags.maxDocuments, "max", "m", 0, "stop after this many accepted documents")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "concurrent download workers")
	cmd.Flags().StringSliceVarP(&flags.types, "only", "o", nil, "accepted file types, e.g. pdf,docx (default: all)")
	cmd.Flags().StringVarP(&flags.engine, "engine", "e", "", "primary search engine: duckduckgo, bing, or google")
	cmd.Flags().StringVar(&flags.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address, e.g. :9090")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runFetchCommand(cmd *cobra.Command, flags fetchFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	session, err := buildSession(flags, cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(session.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	listen := flags.metricsListen
	if listen == "" {
		listen = cfg.Metrics.Listen
	}
	if listen != "" {
		go serveMetrics(listen, logger)
	}

	logger.Info("session starting",
		zap.String("subject", session.Subject),
		zap.String("engine", session.Engine),
		zap.Int("max_documents", session.MaxDocuments),
		zap.Int("workers", session.WorkerCount),
		zap.String("output_dir", session.OutputDir),
	)

	stats, err := runSession(cmd, cfg, session, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "accepted %d document(s) in %s (%d rejected, %d failed)\n",
		stats.Accepted, stats.Elapsed.Round(time.Millisecond), stats.Rejected, stats.Failed)
	for _, p := range stats.AcceptedPaths {
		fmt.Fprintln(cmd.OutOrStdout(), "  "+p)
	}
	return nil
}

// buildSession folds CLI flags over file/env configuration into the
// per-session input.
func buildSession(flags fetchFlags, cfg config.Config) (config.SessionConfig, error) {
	allowed, err := doctype.ParseTypes(strings.Join(flags.types, ","))
	if err != nil {
		return config.SessionConfig{}, err
	}

	session := config.SessionConfig{
		Subject:      flags.subject,
		MaxDocuments: cfg.Fetch.MaxDocuments,
		WorkerCount:  cfg.Fetch.Workers,
		AllowedTypes: allowed,
		Engine:       cfg.Search.Engine,
		OutputDir:    flags.outputDir,
	}
	if flags.maxDocuments > 0 {
		session.MaxDocuments = flags.maxDocuments
	}
	if flags.workers > 0 {
		session.WorkerCount = flags.workers
	}
	if flags.engine != "" {
		session.Engine = flags.engine
	}
	if session.OutputDir == "" {
		session.OutputDir = defaultOutputDir()
	}

	if err := session.Validate(); err != nil {
		return config.SessionConfig{}, err
	}
	return session, nil
}

func defaultOutputDir() string {
	suffix, err := uuid.NewGenerator().NewShortID(6)
	if err != nil {
		suffix = "000000"
	}
	return fmt.Sprintf("downloads_%s_%s", time.Now().Format("20060102_150405"), suffix)
}

func runSession(cmd *cobra.Command, cfg config.Config, session config.SessionConfig, logger *zap.Logger) (fetch.Stats, error) {
	st, err := store.New(session.OutputDir, uuid.NewGenerator(), logger)
	if err != nil {
		return fetch.Stats{}, fmt.Errorf("open store: %w", err)
	}

	getter := search.NewGetter(cfg.RequestTimeout(), cfg.Search.UserAgents, logger)
	providers, err := search.Chain(session.Engine, getter)
	if err != nil {
		return fetch.Stats{}, err
	}
	stream := search.NewStream(session.Subject, session.AllowedTypes, providers, search.Options{
		MaxPages: cfg.Search.MaxPages,
		Pause:    cfg.SearchPause(),
	}, logger)

	runner := fetch.NewJobRunner(st,
		retry.New(cfg.Fetch.MaxRetries+1, cfg.BackoffBase()),
		fetch.JobConfig{
			Timeout:      cfg.RequestTimeout(),
			SampleBytes:  cfg.Fetch.SampleBytes,
			UserAgents:   cfg.Search.UserAgents,
			AllowedTypes: session.AllowedTypes,
		}, logger)

	coord := fetch.NewCoordinator(stream, runner, system.New(), fetch.CoordinatorConfig{
		Workers:      session.WorkerCount,
		MaxDocuments: session.MaxDocuments,
	}, logger)

	stats, err := coord.Run(cmd.Context())
	if errors.Is(err, search.ErrNoResults) {
		return stats, fmt.Errorf("no search results for %q on any engine", session.Subject)
	}
	return stats, err
}

func serveMetrics(addr string, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics listener starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}
