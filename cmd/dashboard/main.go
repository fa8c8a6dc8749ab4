package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_dashboard/internal/analytics"
	"github.com/eddiefleurent/options_dashboard/internal/config"
	"github.com/eddiefleurent/options_dashboard/internal/dashboard"
	"github.com/eddiefleurent/options_dashboard/internal/marketdata"
	"github.com/eddiefleurent/options_dashboard/internal/report"
	"github.com/eddiefleurent/options_dashboard/internal/risk"
)

func main() {
	var (
		configPath string
		dataFile   string
		once       bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&dataFile, "data", "", "Statement file in the data directory (overrides data.file)")
	flag.BoolVar(&once, "once", false, "Compute one report, print it as JSON and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if dataFile != "" {
		cfg.Data.File = dataFile
	}

	logger := newLogger(cfg.Environment.LogLevel)
	logger.WithFields(logrus.Fields{
		"mode":     cfg.Environment.Mode,
		"provider": cfg.MarketData.Provider,
	}).Info("Starting options dashboard")

	provider, err := newProvider(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create market data provider: %v", err)
	}

	store, err := openStore(cfg.Storage.ReportPath, once)
	if err != nil {
		logger.Fatalf("Failed to open report store: %v", err)
	}

	pipeline := &Pipeline{
		dataDir:     cfg.Data.Dir,
		defaultFile: cfg.Data.File,
		provider:    provider,
		engine:      analytics.NewEngine(engineOptions(cfg), logger),
		store:       store,
		logger:      logger,
		concurrency: cfg.MarketData.Concurrency,
		now:         marketClock(cfg.Location()),
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		if err := printReport(ctx, pipeline); err != nil {
			logger.Fatalf("Failed to compute report: %v", err)
		}
		return
	}

	if err := run(ctx, cfg, pipeline, store, logger); err != nil {
		logger.Fatalf("Dashboard error: %v", err)
	}
	logger.Info("Dashboard stopped successfully")
}

func run(ctx context.Context, cfg *config.Config, pipeline *Pipeline, store report.Store, logger *logrus.Logger) error {
	// Compute immediately on start; the API reports 503 until a report exists.
	if _, err := pipeline.Refresh(ctx, ""); err != nil {
		logger.WithError(err).Error("Initial report refresh failed")
	}

	scheduler := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.Recover(cron.PrintfLogger(logger)), cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	)
	if _, err := scheduler.AddFunc(cfg.Schedule.RefreshCron, func() {
		if !cfg.ShouldRefresh(time.Now()) {
			logger.Debugf("Outside trading hours (%s - %s), skipping refresh",
				cfg.Schedule.TradingStart, cfg.Schedule.TradingEnd)
			return
		}
		if _, err := pipeline.Refresh(ctx, ""); err != nil {
			logger.WithError(err).Error("Scheduled report refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule: %w", err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	server := dashboard.NewServer(dashboard.Config{
		Port:      cfg.Dashboard.Port,
		AuthToken: cfg.Dashboard.AuthToken,
	}, store, pipeline, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping dashboard...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore keeps one-shot runs in memory so they never touch the served report file.
func openStore(path string, once bool) (report.Store, error) {
	if once {
		return report.NewMemoryStore(), nil
	}
	return report.NewJSONStore(path)
}

func printReport(ctx context.Context, pipeline *Pipeline) error {
	rep, err := pipeline.Refresh(ctx, "")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// marketClock reads the wall clock in the market's timezone so days to
// expiration roll over at local midnight, not UTC midnight.
func marketClock(loc *time.Location) func() time.Time {
	return func() time.Time {
		return time.Now().In(loc)
	}
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func engineOptions(cfg *config.Config) analytics.Options {
	return analytics.Options{
		Model: risk.ModelParams{
			RiskFreeRate: cfg.Analytics.Rate(),
			MinVol:       cfg.Analytics.MinIV,
			MaxVol:       cfg.Analytics.MaxIV,
		},
		CloseThreshold: cfg.Analytics.CloseThresholdPct,
	}
}

// newProvider builds the configured provider wrapped in retry and circuit breaker layers.
func newProvider(cfg *config.Config, logger *logrus.Logger) (marketdata.Provider, error) {
	md := cfg.MarketData
	quotes := marketdata.Quotes{Spot: md.Quotes, VIX: md.VIX, AccountValue: md.AccountValue}

	var base marketdata.Provider
	switch md.Provider {
	case config.ProviderMock:
		base = marketdata.NewMockProvider(quotes)
	case config.ProviderFile:
		fp, err := marketdata.NewFileProvider(md.QuotesFile)
		if err != nil {
			return nil, err
		}
		base = fp
	default:
		base = marketdata.NewStaticProvider(quotes)
	}

	interval, openTimeout := cfg.BreakerDurations()
	breaker := marketdata.NewCircuitBreakerProvider(base, marketdata.BreakerSettings{
		MaxRequests:  md.Breaker.MaxRequests,
		Interval:     interval,
		Timeout:      openTimeout,
		MinRequests:  md.Breaker.MinRequests,
		FailureRatio: md.Breaker.FailureRatio,
	}, logger)

	retryCfg := marketdata.DefaultRetryConfig
	retryCfg.MaxRetries = md.Retries
	retryCfg.Timeout = cfg.MarketDataTimeout()
	return marketdata.NewRetryProvider(breaker, logger, retryCfg), nil
}
