// Seed fills the dev gateway's database with plausible campus data.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/config"
	"github.com/trailtalk/trailtalk/internal/database"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/seed"
)

func main() {
	cfg := config.Load()
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		os.Exit(1)
	}
	defer logger.Close()

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev":
		run(cfg, func(s *seed.Seeder) error { return s.SeedDev() }, "Development database seeded")
	case "test":
		run(cfg, func(s *seed.Seeder) error { return s.SeedTest() }, "Test database seeded")
	case "clean":
		run(cfg, func(s *seed.Seeder) error { return s.Clean() }, "Seed data cleaned")
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}
}

func run(cfg *config.Config, fn func(*seed.Seeder) error, doneMsg string) {
	db, err := database.Initialize(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	if err := fn(seed.NewSeeder(db)); err != nil {
		logger.Log.Fatal("Seeding failed", zap.Error(err))
	}
	logger.Log.Info(doneMsg)
}
