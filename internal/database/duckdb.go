package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Settings are the resource ceilings applied to every connection before any
// stage runs. MemoryLimit caps the working set of a single query, Threads caps
// the engine's internal parallelism.
type Settings struct {
	Path        string
	MemoryLimit string
	Threads     int
}

// Store wraps the embedded analytical database file all pipeline stages read
// from and publish into.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(ctx context.Context, settings Settings, logger *zap.Logger) (*Store, error) {
	if settings.Path != "" {
		if err := os.MkdirAll(filepath.Dir(settings.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", settings.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if settings.MemoryLimit != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET memory_limit='%s'", settings.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set memory limit: %w", err)
		}
	}
	if settings.Threads > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads TO %d", settings.Threads)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set thread ceiling: %w", err)
		}
	}

	logger.Info("warehouse opened",
		zap.String("path", settings.Path),
		zap.String("memory_limit", settings.MemoryLimit),
		zap.Int("threads", settings.Threads))

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) TableCount(ctx context.Context, name string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", name)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MaxEventTime returns the dataset cutoff instant, the reference every
// recency calculation is anchored to. ok is false when the event store is
// empty.
func (s *Store) MaxEventTime(ctx context.Context) (time.Time, bool, error) {
	var max sql.NullTime
	err := s.db.QueryRowContext(ctx, "SELECT MAX(event_time) FROM events").Scan(&max)
	if err != nil {
		return time.Time{}, false, err
	}
	return max.Time, max.Valid, nil
}
