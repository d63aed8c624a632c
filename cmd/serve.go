package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/api"
	"github.com/pageharvest/harvestd/internal/archive"
	"github.com/pageharvest/harvestd/internal/clock/system"
	"github.com/pageharvest/harvestd/internal/config"
	"github.com/pageharvest/harvestd/internal/discovery"
	"github.com/pageharvest/harvestd/internal/extract"
	"github.com/pageharvest/harvestd/internal/fetcher"
	"github.com/pageharvest/harvestd/internal/harvest"
	"github.com/pageharvest/harvestd/internal/id/uuid"
	"github.com/pageharvest/harvestd/internal/logging"
	"github.com/pageharvest/harvestd/internal/metrics"
	"github.com/pageharvest/harvestd/internal/orchestrator"
	"github.com/pageharvest/harvestd/internal/queue"
	"github.com/pageharvest/harvestd/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the harvesting HTTP service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, logFile, err := logging.New(cfg.Logging.Development, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := fetcher.NewCache()
	pageFetcher, err := fetcher.New(fetcher.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		RequestTimeout: cfg.FetchTimeout(),
		EdgeServers:    cfg.Fetch.EdgeServers,
	}, cache, logger)
	if err != nil {
		return err
	}

	clk := system.New()
	janitor := store.NewJanitor(cfg.SessionTTL(), cfg.SweepInterval(), clk, logger)
	if err := janitor.Adopt(cfg.Store.WorkRoot); err != nil {
		logger.Warn("leftover session adoption failed", zap.Error(err))
	}
	go janitor.Run(ctx)

	artifacts, err := store.New(cfg.Store.WorkRoot, cache, janitor, logger)
	if err != nil {
		return err
	}

	blocklist := harvest.NewDomainBlocklist(cfg.Discovery.ExcludedDomains)
	engine := discovery.NewEngine(pageFetcher, blocklist, discovery.Config{
		SearchBaseURL:  cfg.Discovery.SearchBaseURL,
		PageCap:        cfg.Discovery.PageCap,
		ResultsPerPage: cfg.Discovery.ResultsPerPage,
		Policy:         discovery.FilterPolicy(cfg.Discovery.FilterPolicy),
	}, logger)

	orch := orchestrator.New(
		pageFetcher,
		extract.NewExtractor(),
		artifacts,
		engine,
		orchestrator.NewJobStore(),
		uuid.NewGenerator(),
		clk,
		queue.New(cfg.Harvest.QueueDepth),
		orchestrator.Config{
			MaxListURLs:    cfg.Harvest.MaxListURLs,
			Workers:        cfg.Harvest.Workers,
			MaxFilesPerJob: cfg.Store.MaxFilesPerJob,
			MaxResults:     cfg.Discovery.MaxResults,
		},
		logger,
	)
	go orch.Run(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %dm", cfg.Fetch.CacheResetMinutes), func() {
		cache.Reset()
		logger.Info("fetch cache reset")
	}); err != nil {
		return fmt.Errorf("schedule cache reset: %w", err)
	}
	if logFile != nil {
		if _, err := scheduler.AddFunc(cfg.Logging.RotateSchedule, func() {
			if err := logFile.Clear(); err != nil {
				logger.Error("log rotation failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule log rotation: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(
		orch,
		archive.New(cfg.Store.WorkRoot, logger),
		logFile,
		time.Duration(cfg.Server.TimeoutSeconds)*time.Second,
		logger,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
