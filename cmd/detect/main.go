package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/quoryx/quoryx-backend/internal/domain/intercompany"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/config"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/logging"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

// detect runs a single intercompany detection pass and prints the result as
// JSON. Useful for cron-driven batch runs without the API server.
func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "detect")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	detector := intercompany.NewDetector(store, store, logger)

	result, err := detector.Detect()
	if err != nil {
		logger.Error("Detection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logger.Error("Failed to encode result", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
