package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"papertrade/internal/config"
	"papertrade/internal/dashboard"
	"papertrade/internal/ledger"
	"papertrade/internal/marketdata"
	"papertrade/internal/news"
	"papertrade/internal/store"
	"papertrade/internal/util"
	"papertrade/internal/valuation"
)

func main() {
	_ = godotenv.Load()

	cfgPath := "config/papertrade.yaml"
	if p := os.Getenv("PAPERTRADE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("papertrade-client-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, "text")

	statePath := filepath.Join(cfg.Storage.DataDir, "client-state.json")
	if p := os.Getenv("PAPERTRADE_CLIENT_STATE"); p != "" {
		statePath = p
	}
	kv, err := store.NewFileStore(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening state: %v\n", err)
		os.Exit(1)
	}
	logger.Info("client state", "path", kv.Path())

	sources, err := marketdata.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "market data: %v\n", err)
		os.Exit(1)
	}
	newsSrc, err := news.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "news: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := ledger.Open(ctx, kv, sources.Quotes, ledger.Options{
		StartingBalance: cfg.Trading.StartingBalance,
		Log:             logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening ledger: %v\n", err)
		os.Exit(1)
	}
	valuer := valuation.New(l, sources.Quotes, cfg.Trading.ValuationInterval, logger)
	theme := dashboard.NewTheme(kv)
	dark, err := theme.Dark(ctx)
	if err != nil {
		logger.Warn("reading theme", "error", err)
	}

	m := initialModel(ctx, l,
		dashboard.NewWatcher(l, valuer),
		dashboard.NewPanel(sources.Quotes, sources.History, newsSrc, logger),
		newsSrc, theme, dark, logger)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
