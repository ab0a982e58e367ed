package stages_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"behavior-warehouse/internal/database"
	"behavior-warehouse/internal/ingest"
)

// sliceSource feeds a fixed fixture through the real ingestion path.
type sliceSource struct {
	events []ingest.Event
	offset int
}

func (s *sliceSource) Name() string                   { return "fixture" }
func (s *sliceSource) Open(ctx context.Context) error { return nil }
func (s *sliceSource) Close() error                   { return nil }

func (s *sliceSource) Next(ctx context.Context, batch []ingest.Event) (int, error) {
	if s.offset >= len(s.events) {
		return 0, io.EOF
	}
	n := copy(batch, s.events[s.offset:])
	s.offset += n
	return n, nil
}

func openTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(context.Background(), database.Settings{
		MemoryLimit: "512MB",
		Threads:     2,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedEvents(t *testing.T, store *database.Store, events []ingest.Event) {
	t.Helper()
	_, err := ingest.Load(context.Background(), store, &sliceSource{events: events}, 100, zap.NewNop())
	require.NoError(t, err)
}

// at returns an instant day days and hours hours into the fixture window.
func at(day, hour int) time.Time {
	base := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(day*24+hour) * time.Hour)
}

func event(eventType string, user, product int64, session string, ts time.Time, price float64) ingest.Event {
	return ingest.Event{
		EventTime:    ts,
		EventType:    eventType,
		ProductID:    product,
		CategoryID:   product % 10,
		CategoryCode: "electronics.smartphone",
		Brand:        "acme",
		Price:        price,
		UserID:       user,
		UserSession:  session,
	}
}

func view(user, product int64, session string, ts time.Time) ingest.Event {
	return event("view", user, product, session, ts, 10)
}

func cart(user, product int64, session string, ts time.Time) ingest.Event {
	return event("cart", user, product, session, ts, 10)
}

func purchase(user, product int64, session string, ts time.Time, price float64) ingest.Event {
	return event("purchase", user, product, session, ts, price)
}
