// migrate applies the gateway's embedded SQL migrations (pending registrations, audit log).
// Usage: go run ./cmd/migrate -direction up|down|status
package main

import (
	"flag"
	"fmt"
	"os"

	"auth-gateway/backend/internal/config"
	"auth-gateway/backend/internal/db/migrate"
	"auth-gateway/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "up, down, or status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel).With("component", "migrate")

	if *direction == "status" {
		version, dirty, ok, err := migrate.Status(cfg.DatabaseURL)
		if err != nil {
			logger.Error("status failed", "error", err)
			os.Exit(1)
		}
		if !ok {
			logger.Info("no migrations applied")
			return
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		logger.Error("migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "direction", *direction)
}
