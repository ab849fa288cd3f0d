package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"commodity-rag/internal/app"
	"commodity-rag/internal/config"
	"commodity-rag/internal/ingest"
	"commodity-rag/internal/logger"
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

	lg := logger.New("commodity-indexer")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	indexer, err := a.CommodityIndexer()
	if err != nil {
		log.Fatalf("commodity indexer init failed: %v", err)
	}
	docs, err := indexer.Build(ctx)
	if err != nil {
		log.Fatalf("build summaries failed: %v", err)
	}
	if err := ingest.Publish(ctx, docs, a.Sink(a.Commodities), os.Stdout, lg); err != nil {
		log.Fatalf("indexing failed: %v", err)
	}
}
