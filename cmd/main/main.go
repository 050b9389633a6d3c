package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"quote-proxy/src/config"
	datasource "quote-proxy/src/data_source"
	"quote-proxy/src/data_source/yahoo"
	"quote-proxy/src/grpc_control"
	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/metrics"
	"quote-proxy/src/network"
	"quote-proxy/src/quotes"
	"quote-proxy/src/server"
	"quote-proxy/src/storage"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	printConfig := flag.Bool("print-config", false, "print the effective config and exit")
	saveConfig := flag.String("save-config", "", "write the effective config, defaults filled in, to this path and exit")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *printConfig {
		if err := cfg.Encode(os.Stdout); err != nil {
			fmt.Printf("Error printing config: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *saveConfig != "" {
		if err := cfg.Save(*saveConfig); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", *saveConfig)
		return
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Storage
	store, err := storage.NewCacheStore(cfg.MConfig, appLogger.Named("Storage"))
	if err != nil {
		appLogger.Critical("Failed to init cache store: %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		appLogger.Critical("Failed to initialize cache store: %v", err)
	}
	defer store.Close()

	// 2. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	quoteMetrics := metrics.NewQuoteMetrics(registry)

	// 3. Upstream
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.MConfig, appLogger.Named("Network"), quoteMetrics)
	var fetcher interfaces.IQuoteFetcher = yahoo.NewYahooChartSource(cfg.MConfig, networkManager, appLogger.Named("Yahoo"))

	// 4. Quote service and HTTP server
	svc := quotes.NewService(store, fetcher, clock.WallClock, appLogger.Named("Quotes"), quoteMetrics)
	srv := server.NewQuoteServer(cfg.MConfig, svc, store, registry, appLogger.Named("Server"))
	svc.Publisher = srv

	var wg sync.WaitGroup

	// 5. Retention sweeper
	sweeper := quotes.NewSweeper(cfg.MConfig, store, clock.WallClock, appLogger.Named("Sweeper"), quoteMetrics)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// 6. Watchlist warmer
	var warmer *datasource.Warmer
	if cfg.Warmer.Enabled {
		warmer = datasource.NewWarmer(cfg.MConfig, svc, clock.WallClock, appLogger.Named("Warmer"))
		if resolver, ok := store.(interfaces.IWatchlistResolver); ok {
			warmer.Resolver = resolver
		}
		if err := warmer.Start(ctx); err != nil {
			appLogger.Critical("Failed to start warmer: %v", err)
		}
	}

	// 7. gRPC health endpoint
	var health *grpc_control.HealthService
	if cfg.GrpcPort != 0 {
		health = grpc_control.NewHealthService(cfg.MConfig, store, appLogger.Named("gRPC"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := health.Start(ctx); err != nil {
				appLogger.Error("gRPC health service failed: %v", err)
			}
		}()
	}

	// 8. Serve
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Info("Received %s, shutting down...", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	if warmer != nil {
		warmer.Stop()
	}
	if health != nil {
		health.Stop()
	}
	cancel()
	wg.Wait()

	appLogger.Info("Shutdown complete.")
}
