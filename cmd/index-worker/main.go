package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"commodity-rag/internal/app"
	"commodity-rag/internal/config"
	"commodity-rag/internal/logger"
	"commodity-rag/internal/queue"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/commodity-rag/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatalf("kafka.brokers (or KAFKA_BROKERS) is required")
	}

	lg := logger.New("index-worker")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	reader := queue.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer reader.Close()

	lg.Info("worker started",
		slog.String("topic", cfg.Kafka.Topic),
		slog.String("group", cfg.Kafka.GroupID),
	)
	if err := queue.Consume(ctx, reader, queue.NewHandler(a.IndexSinks(), lg)); err != nil {
		log.Fatalf("consumer stopped: %v", err)
	}
	lg.Info("worker stopped")
}
