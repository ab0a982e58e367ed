package ingest

import (
	"context"
	"time"
)

// Event is one raw behavioral action. Events are appended once during
// ingestion and never updated or deleted.
type Event struct {
	EventTime    time.Time
	EventType    string
	ProductID    int64
	CategoryID   int64
	CategoryCode string
	Brand        string
	Price        float64
	UserID       int64
	UserSession  string
}

// Source streams raw events out of an operational store. Next fills batch and
// returns the number of events written; it returns io.EOF once the source is
// drained.
type Source interface {
	Name() string
	Open(ctx context.Context) error
	Next(ctx context.Context, batch []Event) (int, error)
	Close() error
}
