package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/finradar/finradar/internal/ceg"
	"github.com/finradar/finradar/internal/config"
	"github.com/finradar/finradar/internal/events"
	"github.com/finradar/finradar/internal/extraction"
	"github.com/finradar/finradar/internal/graph"
	"github.com/finradar/finradar/internal/importance"
	"github.com/finradar/finradar/internal/lifecycle"
	"github.com/finradar/finradar/internal/linker"
	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/marketimpact"
	"github.com/finradar/finradar/internal/metrics"
	"github.com/finradar/finradar/internal/moex"
	"github.com/finradar/finradar/internal/orchestrator"
	"github.com/finradar/finradar/internal/reconciler"
	"github.com/finradar/finradar/internal/source"
	"github.com/finradar/finradar/internal/storage"
	"github.com/finradar/finradar/internal/tracing"
	"github.com/finradar/finradar/internal/watchers"
)

var (
	configPath        string
	sourceFilter      string
	lookbackDays      int
	realtimeMode      bool
	batchSizeFlag     int
	extractionBackend string
	metricsAddr       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion pipeline",
	Long: `Run the pipeline: fetch records from every enabled source, extract
events, link instruments, score importance, infer causal links and
evaluate watch rules. One cycle by default; --realtime polls each
source at its configured interval until interrupted.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file")
	runCmd.Flags().StringVar(&sourceFilter, "source", "", "Restrict the run to a single source code")
	runCmd.Flags().IntVar(&lookbackDays, "days", 0, "Ignore cursors and backfill the last N days")
	runCmd.Flags().BoolVar(&realtimeMode, "realtime", false, "Poll sources continuously instead of running once")
	runCmd.Flags().IntVar(&batchSizeFlag, "batch-size", 0, "Override the configured extraction batch size")
	runCmd.Flags().StringVar(&extractionBackend, "extraction", "", "Override the extraction backend (remote or local)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Override the /metrics listen address (e.g. :9090)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := setupLog(logLevelFlags); err != nil {
		return err
	}
	logger := logging.GetLogger("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Relational store.
	store, err := storage.Open(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer store.Close()
	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	// Graph store.
	graphCfg, err := graphClientConfig(cfg)
	if err != nil {
		return err
	}
	graphClient := graph.NewClient(graphCfg)
	if err := graphClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect graph: %w", err)
	}
	defer graphClient.Close()
	if err := graphClient.InitializeSchema(ctx); err != nil {
		return fmt.Errorf("graph schema: %w", err)
	}
	cachedGraph, err := graph.NewCachedClient(graphClient, graph.DefaultQueryCacheConfig(), logging.GetLogger("graph.cache"))
	if err != nil {
		return err
	}
	writer := graph.NewWriter(cachedGraph)
	reader := graph.NewReader(cachedGraph)

	// Market data.
	var priceCache *redis.Client
	if cfg.Storage.RedisAddr != "" {
		priceCache = redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		defer priceCache.Close()
	}
	moexClient := moex.NewClient(moex.ClientConfig{
		BaseURL:       cfg.Moex.BaseURL,
		SearchTimeout: cfg.Moex.SearchTimeout,
		DataTimeout:   cfg.Moex.DataTimeout,
		RatePerSecond: cfg.Moex.RatePerSecond,
	})
	prices := moex.NewPriceService(moexClient, priceCache)

	// Instrument linker.
	aliases, err := linker.NewAliasTable(cfg.LearnedAliasFile)
	if err != nil {
		return fmt.Errorf("load aliases: %w", err)
	}
	resolver := linker.New(aliases, moexClient)

	// Extraction backend.
	extractor, err := buildExtractionClient(cfg)
	if err != nil {
		return err
	}

	// Analysis stages.
	anchorSet := cfg.AnchorSet()
	analyzer := marketimpact.NewAnalyzer(prices)
	scorer := importance.NewScorer(store, anchorSet)
	engine := ceg.NewEngine(analyzer)
	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.New(registry)
	retro := reconciler.New(store, engine, writer, reconciler.Options{
		ScanCap:  cfg.RetroScanCap,
		Lookback: time.Duration(cfg.LookbackDays) * 24 * time.Hour,
		Scores:   store,
		Metrics:  pipelineMetrics,
	})

	// Watch rules.
	rules, err := watchers.LoadRuleFile(cfg.Watchers.RulesFile)
	if err != nil {
		return fmt.Errorf("load watch rules: %w", err)
	}
	notifiers := []watchers.Notifier{watchers.NewLogNotifier()}
	if cfg.Watchers.WebhookURL != "" {
		notifiers = append(notifiers, watchers.NewWebhookNotifier(cfg.Watchers.WebhookURL))
	}
	watchEngine := watchers.NewEngine(store, reader, rules, notifiers...)

	// Observability.
	tracer, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		TLSCAPath:   cfg.Tracing.TLSCAPath,
		TLSInsecure: cfg.Tracing.TLSInsecure,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	// Long-lived components.
	manager := lifecycle.NewManager()
	if err := manager.Register(tracer); err != nil {
		return err
	}
	if err := manager.Register(metrics.NewServer(cfg.MetricsAddr, registry)); err != nil {
		return err
	}
	if cfg.Watchers.RulesFile != "" {
		reloader, err := watchers.NewRuleReloader(cfg.Watchers.RulesFile, watchEngine)
		if err != nil {
			return fmt.Errorf("rule reloader: %w", err)
		}
		if err := manager.Register(&lifecycle.Func{
			ComponentName: "rule-reloader",
			StartFunc:     reloader.Start,
			StopFunc:      func(context.Context) error { return reloader.Stop() },
		}); err != nil {
			return err
		}
	}
	if err := manager.Register(newSweeper(watchEngine, cfg.Watchers.SweepInterval)); err != nil {
		return err
	}
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := manager.Stop(stopCtx); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	// Sources.
	var adapters []source.Adapter
	for _, src := range cfg.EnabledSources() {
		src := src
		adapter, err := source.NewAdapter(&src)
		if err != nil {
			return err
		}
		adapters = append(adapters, adapter)
	}

	pipeline := orchestrator.NewPipeline(orchestrator.PipelineDeps{
		Extraction: extractor,
		Events:     events.NewExtractor(anchorSet),
		Resolver:   resolver,
		Scorer:     scorer,
		Market:     analyzer,
		Store:      store,
		Graph:      writer,
		Watchers:   watchEngine,
		Retro:      retro,
		Metrics:    pipelineMetrics,
	})
	orch := orchestrator.New(adapters, pipeline, store, orchestrator.Options{
		BatchSize:    cfg.BatchSize,
		Days:         lookbackDays,
		SourceFilter: sourceFilter,
	})

	if realtimeMode {
		logger.Info("entering realtime mode with %d sources", len(adapters))
		err = orch.RunRealtime(ctx)
	} else {
		err = orch.RunOnce(ctx)
	}
	if err != nil && ctx.Err() != nil {
		// Interrupted; the deferred manager stop still runs.
		return context.Canceled
	}
	return err
}

// applyFlagOverrides lets CLI flags win over the config file.
func applyFlagOverrides(cfg *config.Config) {
	if batchSizeFlag > 0 {
		cfg.BatchSize = batchSizeFlag
	}
	if extractionBackend != "" {
		cfg.Extraction.Backend = extractionBackend
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
}

func graphClientConfig(cfg *config.Config) (graph.ClientConfig, error) {
	gc := graph.DefaultClientConfig()
	host, portStr, err := net.SplitHostPort(cfg.Graph.Address)
	if err != nil {
		return gc, &config.ConfigError{Field: "graph.address", Message: err.Error()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return gc, &config.ConfigError{Field: "graph.address", Message: "invalid port"}
	}
	gc.Host = host
	gc.Port = port
	if cfg.Graph.GraphName != "" {
		gc.GraphName = cfg.Graph.GraphName
	}
	if cfg.Graph.Timeout > 0 {
		gc.DialTimeout = cfg.Graph.Timeout
	}
	return gc, nil
}

func buildExtractionClient(cfg *config.Config) (extraction.Client, error) {
	var inner extraction.Client
	switch cfg.Extraction.Backend {
	case "local":
		inner = extraction.NewLocalClient()
	default:
		apiKey := os.Getenv(cfg.Extraction.APIKeyEnv)
		if apiKey == "" {
			return nil, &config.ConfigError{
				Field:   "extraction.api_key_env",
				Message: fmt.Sprintf("environment variable %s is not set", cfg.Extraction.APIKeyEnv),
			}
		}
		remote, err := extraction.NewRemoteClient(extraction.RemoteConfig{
			APIKey: apiKey,
			Model:  cfg.Extraction.Model,
		})
		if err != nil {
			return nil, err
		}
		inner = remote
	}
	if cfg.Extraction.CacheSize > 0 {
		return extraction.NewCachedClient(inner, cfg.Extraction.CacheSize)
	}
	return inner, nil
}

// sweeper expires stale watches and closes overdue predictions on a
// fixed interval.
type sweeper struct {
	engine   *watchers.Engine
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func newSweeper(engine *watchers.Engine, interval time.Duration) *sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &sweeper{
		engine:   engine,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *sweeper) Name() string { return "watch-sweeper" }

func (s *sweeper) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if err := s.engine.Sweep(sweepCtx, now.UTC()); err != nil {
					logging.GetLogger("watchers").Warn("sweep: %v", err)
				}
				cancel()
			}
		}
	}()
	return nil
}

func (s *sweeper) Stop(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
