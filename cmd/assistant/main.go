package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"commodity-rag/internal/app"
	"commodity-rag/internal/assistant"
	"commodity-rag/internal/config"
	"commodity-rag/internal/logger"
	"commodity-rag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var useTUI bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/commodity-rag/config.yaml if not provided)")
	flag.BoolVar(&useTUI, "tui", false, "Run the full-screen terminal UI instead of the line prompt")
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

	// stdout belongs to the conversation
	lg := logger.NewWithWriter(os.Stderr, "assistant", os.Getenv("LOG_LEVEL"))
	if useTUI {
		lg = logger.Discard()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	asst, err := a.Assistant()
	if err != nil {
		log.Fatalf("assistant init failed: %v", err)
	}

	if useTUI {
		if _, err := tea.NewProgram(tui.New(ctx, asst)).Run(); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := assistant.NewSession(asst, os.Stdin, os.Stdout).Run(ctx); err != nil {
		log.Fatalf("assistant stopped: %v", err)
	}
}
