package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"papertrade/internal/config"
	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
	"papertrade/internal/httpapi"
	"papertrade/internal/ledger"
	"papertrade/internal/live"
	"papertrade/internal/marketdata"
	"papertrade/internal/news"
	"papertrade/internal/store"
	"papertrade/internal/util"
	"papertrade/internal/valuation"
)

const shutdownTimeout = 5 * time.Second

func main() {
	_ = godotenv.Load()

	cfgPath := "config/papertrade.yaml"
	if p := os.Getenv("PAPERTRADE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLoggerTo(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	backend, err := store.Open(ctx, logger, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	sources, err := marketdata.New(cfg, logger)
	if err != nil {
		return err
	}
	newsSrc, err := news.New(cfg)
	if err != nil {
		return err
	}

	l, err := ledger.Open(ctx, backend.KV, sources.Quotes, ledger.Options{
		StartingBalance: cfg.Trading.StartingBalance,
		Journal:         backend.Journal,
		Log:             logger,
	})
	if err != nil {
		return err
	}
	valuer := valuation.New(l, sources.Quotes, cfg.Trading.ValuationInterval, logger)
	watcher := dashboard.NewWatcher(l, valuer)

	var archive store.ValuationArchive
	if cfg.Trading.ArchiveValuations {
		pa := store.NewParquetArchive(cfg.Storage.DataDir)
		archive = pa
		// Only valuations an open view produces are archived.
		watcher.OnValuation(func(v domain.Valuation) {
			if err := pa.WriteValuations(context.WithoutCancel(ctx), []domain.Valuation{v}); err != nil {
				logger.Error("archiving valuation", "error", err)
			}
		})
		logger.Info("valuation archive enabled", "dir", cfg.Storage.DataDir)
	}

	api := httpapi.New(httpapi.Deps{
		Ledger:  l,
		Watcher: watcher,
		Quotes:  sources.Quotes,
		History: sources.History,
		News:    newsSrc,
		Panel:   dashboard.NewPanel(sources.Quotes, sources.History, newsSrc, logger),
		Theme:   dashboard.NewTheme(backend.KV),
		Journal: backend.Journal,
		Archive: archive,
		Log:     logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gs := grpc.NewServer()
	live.NewServer(l, watcher, logger).RegisterGRPC(gs)
	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr(), err)
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc listening", "addr", cfg.GRPCAddr())
		if err := gs.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	gs.GracefulStop()
	return runErr
}
