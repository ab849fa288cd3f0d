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
	"commodity-rag/internal/pdf"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, pdfPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/commodity-rag/config.yaml if not provided)")
	flag.StringVar(&pdfPath, "pdf", "", "Strategy document (overrides ingest.strategy.pdf_path)")
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
	if pdfPath == "" {
		pdfPath = cfg.Ingest.Strategy.PDFPath
	}

	lg := logger.New("strategy-indexer")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pages, err := pdf.NewLoader().Load(pdfPath)
	if err != nil {
		log.Fatalf("load %s: %v", pdfPath, err)
	}
	docs := ingest.SplitStrategies(pdf.JoinPages(pages), cfg.Ingest.Strategy.Sections)
	if len(docs) == 0 {
		lg.Warn("strategy headings not found, nothing to index", "path", pdfPath)
	}

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	docs = a.Chunker().ChunkAll(docs)
	if err := ingest.Publish(ctx, docs, a.Sink(a.Strategies), os.Stdout, lg); err != nil {
		log.Fatalf("indexing failed: %v", err)
	}
}
