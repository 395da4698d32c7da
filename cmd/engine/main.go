package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/config"
	"lead-response-engine/pkg/metrics"
	"lead-response-engine/pkg/notify"
	redisClient "lead-response-engine/pkg/redis"
	"lead-response-engine/pkg/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"pod_id":  cfg.PodID,
		"backend": cfg.StoreBackend,
	}).Info("Starting lead response engine")

	m := metrics.NewMetrics()

	var rdb *goredis.Client
	if cfg.StoreBackend == "redis" {
		rdb, err = redisClient.Connect(cfg.RedisURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	sender := notify.NewLogSender(logger)
	svc := service.NewService(rdb, sender, cfg, logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start service")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")
	}

	logger.Info("Lead response engine shutdown complete")
}
