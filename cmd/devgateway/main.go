// The dev gateway is a local stand-in for the hosted backend: generic CRUD
// over the TrailTalk relations, row ownership policy, and realtime change
// fan-out, served over HTTP and websocket.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trailtalk/trailtalk/internal/config"
	"github.com/trailtalk/trailtalk/internal/database"
	"github.com/trailtalk/trailtalk/internal/devgateway"
	"github.com/trailtalk/trailtalk/internal/logger"
)

func main() {
	memory := flag.Bool("memory", false, "run against an ephemeral in-memory database")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("TrailTalk dev gateway starting")

	var db *gorm.DB
	var err error
	if *memory {
		db, err = database.InitializeMemory()
	} else {
		db, err = database.Initialize(cfg)
		if err == nil {
			err = database.Migrate(db)
		}
	}
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close(db)

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	server := devgateway.New(db, secret)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	go func() {
		logger.Log.Info("Dev gateway listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down dev gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Log.Info("Dev gateway exited")
}
