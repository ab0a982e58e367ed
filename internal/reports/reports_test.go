package reports_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"behavior-warehouse/internal/database"
	"behavior-warehouse/internal/ingest"
	"behavior-warehouse/internal/pipeline"
	"behavior-warehouse/internal/reports"
	"behavior-warehouse/internal/stages"
)

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

func seedPipeline(t *testing.T, store *database.Store) {
	t.Helper()
	base := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)
	mk := func(eventType string, user, product int64, session string, day int, price float64) ingest.Event {
		return ingest.Event{
			EventTime:   base.AddDate(0, 0, day),
			EventType:   eventType,
			ProductID:   product,
			CategoryID:  1,
			Brand:       "acme",
			Price:       price,
			UserID:      user,
			UserSession: session,
		}
	}
	events := []ingest.Event{
		mk("view", 1, 100, "s1", 0, 10),
		mk("cart", 1, 100, "s1", 0, 10),
		mk("purchase", 1, 100, "s1", 0, 40),
		mk("purchase", 1, 101, "s1", 0, 60),
		mk("purchase", 2, 100, "s2", 1, 40),
		mk("purchase", 2, 101, "s2", 1, 60),
		mk("view", 3, 101, "s3", 2, 10),
	}
	ctx := context.Background()
	_, err := ingest.Load(ctx, store, &sliceSource{events: events}, 100, zap.NewNop())
	require.NoError(t, err)

	runner := pipeline.NewRunner(store, zap.NewNop())
	_, err = runner.RunAll(ctx, []pipeline.Stage{
		stages.Dimensions{},
		stages.Sessions{},
		stages.DailyKPIs{},
		stages.RFM{QuantileCount: 5},
		stages.Retention{},
		stages.Affinity{MinSupport: 2},
		stages.Features{},
	})
	require.NoError(t, err)
}

func TestReportMissingTablesFallsBack(t *testing.T) {
	store := openTestStore(t)
	client := reports.NewClient(store, zap.NewNop())

	report, err := client.Run(context.Background(), "segments")
	require.NoError(t, err)

	assert.Equal(t, reports.Fallback, report.Fallback)
	assert.Equal(t, []string{"analysis_rfm_segments"}, report.MissingTables)
	assert.Empty(t, report.Rows)
}

func TestReportUnknownName(t *testing.T) {
	store := openTestStore(t)
	client := reports.NewClient(store, zap.NewNop())

	_, err := client.Run(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report")
}

func TestReportFunnel(t *testing.T) {
	store := openTestStore(t)
	seedPipeline(t, store)
	client := reports.NewClient(store, zap.NewNop())

	report, err := client.Run(context.Background(), "funnel")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, int64(2), row["sessions_with_view"])
	assert.Equal(t, int64(1), row["sessions_with_cart"])
	assert.Equal(t, int64(2), row["sessions_with_purchase"])
	assert.InDelta(t, 2.0/3.0, row["overall_conversion"].(float64), 1e-9)
}

func TestReportFunnelZeroViewSentinel(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Purchase-only sessions: the view-to-cart divisor is zero and the rate
	// must come back null, not as an error.
	base := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)
	events := []ingest.Event{
		{EventTime: base, EventType: "purchase", ProductID: 100, Price: 40, UserID: 1, UserSession: "s1"},
		{EventTime: base.AddDate(0, 0, 1), EventType: "purchase", ProductID: 101, Price: 60, UserID: 2, UserSession: "s2"},
	}
	_, err := ingest.Load(ctx, store, &sliceSource{events: events}, 100, zap.NewNop())
	require.NoError(t, err)

	runner := pipeline.NewRunner(store, zap.NewNop())
	_, err = runner.RunStage(ctx, stages.Sessions{})
	require.NoError(t, err)

	client := reports.NewClient(store, zap.NewNop())
	report, err := client.Run(ctx, "funnel")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Nil(t, row["view_to_cart_rate"])
	assert.Equal(t, int64(0), row["sessions_with_view"])
	assert.Equal(t, int64(2), row["sessions_with_purchase"])
}

func TestReportDatasetInfo(t *testing.T) {
	store := openTestStore(t)
	seedPipeline(t, store)
	client := reports.NewClient(store, zap.NewNop())

	report, err := client.Run(context.Background(), "dataset_info")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, int64(7), row["total_events"])
	assert.Equal(t, int64(3), row["total_users"])
	assert.Equal(t, int64(2), row["total_products"])
}

func TestReportAffinityTopJoinsProducts(t *testing.T) {
	store := openTestStore(t)
	seedPipeline(t, store)
	client := reports.NewClient(store, zap.NewNop())

	report, err := client.Run(context.Background(), "affinity_top")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, int64(100), row["product_a"])
	assert.Equal(t, int64(101), row["product_b"])
	assert.Equal(t, "acme", row["brand_a"])
}

func TestReportNamesSorted(t *testing.T) {
	names := reports.Names()
	require.NotEmpty(t, names)
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "funnel")
	assert.Contains(t, names, "dataset_info")
}

func TestExportJSONRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seedPipeline(t, store)
	client := reports.NewClient(store, zap.NewNop())

	report, err := client.Run(context.Background(), "segments")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "segments.json")
	require.NoError(t, reports.ExportJSON(path, report))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded reports.Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "segments", decoded.Name)
	assert.Len(t, decoded.Rows, len(report.Rows))
}

func TestTimestampedFilename(t *testing.T) {
	name := reports.TimestampedFilename("exports", "funnel")
	assert.Equal(t, "exports", filepath.Dir(name))
	assert.Contains(t, filepath.Base(name), "funnel_")
	assert.Contains(t, name, ".json")
}
