package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/listings-client/pkg/logging"
	"github.com/Sternrassler/listings-client/pkg/metrics"
	"github.com/spf13/cobra"
)

// settings are the flags shared by every subcommand.
type settings struct {
	source      string
	redisURL    string
	apiURL      string
	userAgent   string
	metricsAddr string
	cacheTTL    time.Duration
	memorySeed  int
}

func defaultSettings() settings {
	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "30s"))
	if err != nil {
		ttl = 30 * time.Second
	}
	return settings{
		source:      getEnv("LISTINGS_SOURCE", sourceMemory),
		redisURL:    getEnv("REDIS_URL", ""),
		apiURL:      getEnv("LISTINGS_API_URL", "http://localhost:8080"),
		userAgent:   getEnv("USER_AGENT", "listings-client/0.1.0"),
		metricsAddr: getEnv("METRICS_ADDR", ""),
		cacheTTL:    ttl,
		memorySeed:  50,
	}
}

func newRootCommand() *cobra.Command {
	s := defaultSettings()
	var server *http.Server

	cmd := &cobra.Command{
		Use:           "listings",
		Short:         "Browse marketplace listings page by page",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if s.metricsAddr != "" {
				server = startMetricsServer(s.metricsAddr)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if server == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&s.source, "source", s.source, "data source: memory, redis or http")
	f.StringVar(&s.redisURL, "redis-url", s.redisURL, "Redis URL")
	f.StringVar(&s.apiURL, "api-url", s.apiURL, "listings API base URL")
	f.StringVar(&s.userAgent, "user-agent", s.userAgent, "User-Agent for API requests")
	f.StringVar(&s.metricsAddr, "metrics-addr", s.metricsAddr, "serve /metrics and /health on this address")
	f.DurationVar(&s.cacheTTL, "cache-ttl", s.cacheTTL, "page cache TTL for the http source (0 disables)")
	f.IntVar(&s.memorySeed, "memory-seed", s.memorySeed, "sample listings generated for the memory source")

	cmd.AddCommand(
		newBrowseCommand(&s),
		newExportCommand(&s),
		newSeedCommand(&s),
		newPurgeCommand(&s),
	)
	return cmd
}

func newMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func startMetricsServer(addr string) *http.Server {
	logger := logging.NewLogger("cli")
	server := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
