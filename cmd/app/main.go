package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/parking/api"
	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/bootstrap"
	"github.com/Domenick1991/parking/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init application", zap.Error(err))
	}
	defer app.Close()

	router := api.NewRouter(cfg.HTTP, cfg.Reservation.TimeLocation(), app.Catalog, app.Reservations, zl.Named("http"))

	if err := bootstrap.Run(ctx, cfg.HTTP, router, zl); err != nil {
		zl.Error("server error", zap.Error(err))
	}
}
