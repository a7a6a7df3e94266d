package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/util"
)

// Backend bundles the stores selected by configuration.
type Backend struct {
	KV      KV
	Journal TradeJournal

	closers []func() error
}

// Close releases every underlying connection.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the KV and trade journal for cfg. The "memory" backend keeps
// everything in process; every other backend journals trades to SQLite.
func Open(ctx context.Context, log *slog.Logger, cfg config.Storage) (*Backend, error) {
	if cfg.Backend == "memory" {
		m := NewMemoryStore()
		return &Backend{KV: m, Journal: m}, nil
	}

	sqlitePath := cfg.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.DataDir, "papertrade.db")
	}
	db, err := NewSQLiteStore(sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", sqlitePath, err)
	}
	if err := util.RetryLog(ctx, log, 3, 100*time.Millisecond, func() error { return db.Ping(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", sqlitePath, err)
	}
	b := &Backend{Journal: db, closers: []func() error{db.Close}}

	switch cfg.Backend {
	case "sqlite":
		b.KV = db
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = filepath.Join(cfg.DataDir, "state.json")
		}
		fs, err := NewFileStore(path)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.KV = fs
	case "redis":
		rs, err := DialRedis(ctx, log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.KeyPrefix)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.KV = rs
		b.closers = append(b.closers, rs.Close)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	log.Info("storage opened", "backend", cfg.Backend, "journal", sqlitePath)
	return b, nil
}
