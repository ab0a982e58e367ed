package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"behavior-warehouse/internal/database"
)

// EventsSchema is the event store layout. The table is append-once; nothing
// downstream ever updates or deletes a row.
func EventsSchema() string {
	return `
		CREATE TABLE IF NOT EXISTS events (
			event_time    TIMESTAMP NOT NULL,
			event_type    VARCHAR NOT NULL,
			product_id    BIGINT,
			category_id   BIGINT,
			category_code VARCHAR,
			brand         VARCHAR,
			price         DOUBLE NOT NULL,
			user_id       BIGINT NOT NULL,
			user_session  VARCHAR
		);
	`
}

const eventColumns = "event_time, event_type, product_id, category_id, category_code, brand, price, user_id, user_session"

type LoadResult struct {
	RunID           string
	Source          string
	Rows            int64
	Batches         int
	TotalTime       time.Duration
	Throughput      float64
	P95BatchLatency time.Duration
	P99BatchLatency time.Duration
}

// LoadFile replaces the event store with the contents of a parquet or csv
// export, scanned natively by the engine and sorted by event time.
func LoadFile(ctx context.Context, store *database.Store, path string, logger *zap.Logger) (*LoadResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("raw data not found at %s: %w", path, err)
	}

	var reader string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		reader = "read_parquet"
	case ".csv":
		reader = "read_csv_auto"
	default:
		return nil, fmt.Errorf("unsupported raw data format: %s", path)
	}

	start := time.Now()
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE events AS SELECT %s FROM %s('%s') ORDER BY event_time",
		eventColumns, reader, strings.ReplaceAll(path, "'", "''"))
	if err := store.Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("ingestion from %s failed: %w", path, err)
	}

	rows, err := store.TableCount(ctx, "events")
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		RunID:     uuid.New().String(),
		Source:    "file",
		Rows:      rows,
		Batches:   1,
		TotalTime: time.Since(start),
	}
	if secs := result.TotalTime.Seconds(); secs > 0 {
		result.Throughput = float64(rows) / secs
	}

	logger.Info("ingestion complete",
		zap.String("run_id", result.RunID),
		zap.String("source", result.Source),
		zap.Int64("rows", result.Rows),
		zap.Duration("total_time", result.TotalTime))
	return result, nil
}

// Load replaces the event store with everything a source streams out,
// inserted in batches. Batch latency is tracked on an HDR histogram so slow
// operational stores show up in the run report.
func Load(ctx context.Context, store *database.Store, src Source, batchSize int, logger *zap.Logger) (*LoadResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	if err := src.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", src.Name(), err)
	}
	defer src.Close()

	if err := store.Exec(ctx, "DROP TABLE IF EXISTS events"); err != nil {
		return nil, err
	}
	if err := store.Exec(ctx, EventsSchema()); err != nil {
		return nil, err
	}

	histogram := hdrhistogram.New(1, 600000, 3)
	batch := make([]Event, batchSize)
	start := time.Now()

	result := &LoadResult{
		RunID:  uuid.New().String(),
		Source: src.Name(),
	}

	for {
		n, err := src.Next(ctx, batch)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading from %s source failed: %w", src.Name(), err)
		}
		if n == 0 {
			continue
		}

		batchStart := time.Now()
		if err := insertBatch(ctx, store, batch[:n]); err != nil {
			return nil, fmt.Errorf("inserting batch into event store failed: %w", err)
		}
		ms := time.Since(batchStart).Milliseconds()
		if ms < 1 {
			ms = 1
		}
		if ms > histogram.HighestTrackableValue() {
			ms = histogram.HighestTrackableValue()
		}
		_ = histogram.RecordValue(ms)

		result.Rows += int64(n)
		result.Batches++
	}

	result.TotalTime = time.Since(start)
	if secs := result.TotalTime.Seconds(); secs > 0 {
		result.Throughput = float64(result.Rows) / secs
	}
	result.P95BatchLatency = time.Duration(histogram.ValueAtQuantile(95)) * time.Millisecond
	result.P99BatchLatency = time.Duration(histogram.ValueAtQuantile(99)) * time.Millisecond

	logger.Info("ingestion complete",
		zap.String("run_id", result.RunID),
		zap.String("source", result.Source),
		zap.Int64("rows", result.Rows),
		zap.Int("batches", result.Batches),
		zap.Duration("p95_batch_latency", result.P95BatchLatency),
		zap.Duration("total_time", result.TotalTime))
	return result, nil
}

func insertBatch(ctx context.Context, store *database.Store, events []Event) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO events (")
	sb.WriteString(eventColumns)
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(events)*9)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.EventTime, e.EventType, e.ProductID, e.CategoryID,
			nullable(e.CategoryCode), nullable(e.Brand),
			e.Price, e.UserID, nullable(e.UserSession))
	}

	return store.Exec(ctx, sb.String(), args...)
}

// nullable maps an absent string field to SQL NULL so the defaulting rules in
// the dimensional builder apply.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
