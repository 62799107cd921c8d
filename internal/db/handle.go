package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Handle owns the lazily opened store. Open is idempotent and safe to call
// from several goroutines at startup: concurrent callers share one open.
type Handle struct {
	path   string
	logger *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	db    *sql.DB
}

func NewHandle(path string, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{path: path, logger: logger}
}

func (h *Handle) Path() string {
	return h.path
}

func (h *Handle) Open(ctx context.Context) (*sql.DB, error) {
	if db := h.current(); db != nil {
		return db, nil
	}
	v, err, _ := h.group.Do("open", func() (any, error) {
		if db := h.current(); db != nil {
			return db, nil
		}
		sqldb, err := Open(h.path)
		if err != nil {
			return nil, err
		}
		if err := ApplyMigrations(ctx, sqldb); err != nil {
			sqldb.Close()
			return nil, err
		}
		h.mu.Lock()
		h.db = sqldb
		h.mu.Unlock()
		h.logger.Debug("store opened", "path", h.path)
		return sqldb, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", h.path, err)
	}
	return v.(*sql.DB), nil
}

// Close releases the handle. A later Open reopens the store.
func (h *Handle) Close() error {
	h.mu.Lock()
	db := h.db
	h.db = nil
	h.mu.Unlock()
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func (h *Handle) current() *sql.DB {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db
}
