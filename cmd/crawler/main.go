package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imovelscan/checkpoint"
	"imovelscan/config"
	"imovelscan/crawler"
	"imovelscan/fetcher"
	"imovelscan/models"
	"imovelscan/stats"
	"imovelscan/walker"
)

func main() {
	config.LoadEnv()

	defaultCfg := config.DefaultConfig()
	baseURLDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("IMOVELSCAN_BASE_URL"); ok {
		baseURLDefault = value
	}
	checkpointDefault := defaultCfg.CheckpointFile
	if value, ok := config.EnvString("IMOVELSCAN_CHECKPOINT"); ok {
		checkpointDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("IMOVELSCAN_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("IMOVELSCAN_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	delayDefault := int(defaultCfg.Delay / time.Millisecond)
	if value, ok, err := config.EnvInt("IMOVELSCAN_DELAY_MS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid IMOVELSCAN_DELAY_MS: %v\n", err)
		os.Exit(1)
	} else if ok {
		delayDefault = value
	}

	baseURL := flag.String("base-url", baseURLDefault, "Base URL of the listing site")
	paths := flag.String("paths", "", "Comma-separated search paths (overrides defaults)")
	profile := flag.String("profile", "", "YAML site profile file")
	delayMs := flag.Int("delay", delayDefault, "Minimum delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaultCfg.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Request timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	checkpointFile := flag.String("checkpoint", checkpointDefault, "Checkpoint file path")
	checkpointInterval := flag.Int("checkpoint-interval", defaultCfg.CheckpointInterval, "Records per automatic snapshot")
	resume := flag.Bool("resume", false, "Resume from the last checkpoint")
	maxSkipRatio := flag.Float64("max-skip-ratio", defaultCfg.MaxSkipRatio, "Abort when the skipped fraction exceeds this")
	outputFile := flag.String("output", outputDefault, "Dataset CSV path (JSONL written alongside)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	// slog.SetLogLoggerLevel requires Go 1.22+; route the legacy log
	// package through the handler at the same level using 1.21 APIs.
	log.SetOutput(slog.NewLogLogger(logger.Handler(), level.Level()).Writer())
	log.SetFlags(0)

	cfg := defaultCfg
	cfg.BaseURL = *baseURL
	if *paths != "" {
		cfg.SearchPaths = splitPaths(*paths)
	}
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.CheckpointFile = *checkpointFile
	cfg.CheckpointInterval = *checkpointInterval
	cfg.Resume = *resume
	cfg.MaxSkipRatio = *maxSkipRatio
	cfg.OutputFile = *outputFile
	cfg.MetricsAddr = *metricsAddr
	cfg.RespectRobotsTxt = *respectRobots
	cfg.Verbose = *verbose

	if *profile != "" {
		if err := cfg.ApplyProfile(*profile); err != nil {
			slog.Error("loading site profile", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("search_paths", len(cfg.SearchPaths)),
		slog.Bool("resume", cfg.Resume),
	)

	metrics := crawler.NewMetrics()

	client, err := fetcher.New(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	walk, err := walker.New(client, cfg)
	if err != nil {
		slog.Error("initialising walker", slog.Any("error", err))
		os.Exit(1)
	}

	jsonlFile := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".jsonl"
	store := checkpoint.NewStore(cfg.CheckpointFile, cfg.CheckpointInterval, metrics,
		checkpoint.NewCSVExporter(cfg.OutputFile),
		checkpoint.NewJSONLExporter(jsonlFile),
	)

	if cfg.Resume {
		if err := store.Load(); err != nil {
			slog.Error("loading checkpoint", slog.Any("error", err))
			os.Exit(1)
		}
		walk.SetStartPage(store.LastPage())
		slog.Info("resuming crawl",
			slog.Int("records", store.Len()),
			slog.Int("last_page", store.LastPage()),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the in-flight listing")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	orchestrator := crawler.New(cfg, client, walk, store, metrics)
	result, runErr := orchestrator.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, store, cfg.OutputFile)

	if runErr != nil {
		os.Exit(1)
	}
}

func splitPaths(raw string) []string {
	parts := strings.Split(raw, ",")
	paths := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "/") {
			part = "/" + part
		}
		paths = append(paths, part)
	}
	return paths
}

func printSummary(result *models.RunResult, store *checkpoint.Store, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Crawl %s\n", result.State)

	fmt.Printf("  Pages walked:    %d\n", result.PagesWalked)
	fmt.Printf("  Records stored:  %d\n", store.Len())
	fmt.Printf("  Skipped:         %d (%.1f%%)\n", result.Skipped, result.SkipRatio()*100)
	fmt.Printf("  Retries:         %d\n", result.RetryCount)
	if len(result.FailuresByType) > 0 {
		fmt.Printf("  Failure types:   %v\n", result.FailuresByType)
	}
	if result.AbortCause != "" {
		fmt.Printf("  Abort cause:     %s\n", result.AbortCause)
	}
	fmt.Printf("  Duration:        %v\n", result.Duration().Round(time.Millisecond))
	fmt.Printf("  Output file:     %s\n", outputFile)

	fmt.Println(separator)
	stats.Compute(store.Records()).Write(os.Stdout)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
