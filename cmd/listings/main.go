// Command listings browses, exports and seeds marketplace listings.
//
// Configuration comes from flags, the environment, and an optional .env file
// in the working directory:
//
//	LISTINGS_SOURCE   memory | redis | http (default memory)
//	REDIS_URL         redis://host:port/db, required by the redis source and
//	                  enabling the shared quota and page cache for http
//	LISTINGS_API_URL  base URL of the listings REST API
//	USER_AGENT        User-Agent sent to the API
//	METRICS_ADDR      address serving /metrics and /health (disabled if empty)
//	CACHE_TTL         page cache TTL for the http source (default 30s)
//	LOG_LEVEL         debug | info | warn | error
//	LOG_PRETTY        true for console output
package main

import (
	"os"

	"github.com/Sternrassler/listings-client/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	logging.Setup(logging.ConfigFromEnv())

	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
