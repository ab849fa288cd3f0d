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
	flag.StringVar(&pdfPath, "pdf", "", "News document (overrides ingest.news.pdf_path)")
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
		pdfPath = cfg.Ingest.News.PDFPath
	}

	lg := logger.New("news-indexer")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pages, err := pdf.NewLoader().Load(pdfPath)
	if err != nil {
		log.Fatalf("load %s: %v", pdfPath, err)
	}

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	splitter := ingest.NewNewsSplitter(a.Lexicon, cfg.Ingest.News.StrictMonths, lg)
	docs := a.Chunker().ChunkAll(splitter.Split(pdf.JoinPages(pages)))
	if err := ingest.Publish(ctx, docs, a.Sink(a.News), os.Stdout, lg); err != nil {
		log.Fatalf("indexing failed: %v", err)
	}
}
