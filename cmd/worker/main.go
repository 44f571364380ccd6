package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/audit"
	"github.com/Domenick1991/parking/internal/bootstrap"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/Domenick1991/parking/internal/logger"
	"github.com/Domenick1991/parking/internal/worker"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init application", zap.Error(err))
	}
	defer app.Close()

	var source worker.EventSource
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ReservationTopic, zl.Named("kafka"))
		defer consumer.Close()
		source = consumer
	} else {
		zl.Warn("kafka brokers not configured, running occupancy report only")
	}

	var cache worker.Cache
	if app.Cache != nil {
		cache = app.Cache
	}

	w := worker.New(audit.NewRecorder(zl), cache, app.Reservations, nil, zl.Named("worker"))
	zl.Info("worker started", zap.String("occupancy_cron", cfg.Worker.OccupancyCron))
	if err := w.Run(ctx, source, cfg.Worker.OccupancyCron); err != nil {
		zl.Error("worker stopped", zap.Error(err))
		return
	}
	zl.Info("worker stopped")
}
