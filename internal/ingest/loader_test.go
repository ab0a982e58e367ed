package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"behavior-warehouse/internal/database"
	"behavior-warehouse/internal/ingest"
)

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

func TestLoadSynthetic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	src := &ingest.SyntheticSource{Events: 500, Seed: 42}
	result, err := ingest.Load(ctx, store, src, 128, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "synthetic", result.Source)
	assert.Equal(t, int64(500), result.Rows)
	assert.Equal(t, 4, result.Batches)
	assert.NotEmpty(t, result.RunID)

	count, err := store.TableCount(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(500), count)
}

func TestLoadReplacesPreviousEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := ingest.Load(ctx, store, &ingest.SyntheticSource{Events: 200, Seed: 1}, 100, zap.NewNop())
	require.NoError(t, err)
	_, err = ingest.Load(ctx, store, &ingest.SyntheticSource{Events: 50, Seed: 2}, 100, zap.NewNop())
	require.NoError(t, err)

	count, err := store.TableCount(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)
}

func TestLoadSyntheticDeterministic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snapshot := func(seed int64) string {
		_, err := ingest.Load(ctx, store, &ingest.SyntheticSource{Events: 300, Seed: seed}, 100, zap.NewNop())
		require.NoError(t, err)

		var digest string
		err = store.QueryRow(ctx, `
			SELECT printf('%d|%d|%.2f', COUNT(*), COUNT(DISTINCT user_id), SUM(price))
			FROM events`).Scan(&digest)
		require.NoError(t, err)
		return digest
	}

	first := snapshot(7)
	second := snapshot(7)
	assert.Equal(t, first, second)
}

func TestLoadRejectsBadBatchSize(t *testing.T) {
	store := openTestStore(t)

	_, err := ingest.Load(context.Background(), store, &ingest.SyntheticSource{Events: 10, Seed: 1}, 0, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size")
}

func TestLoadNullableFields(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Seeded generation leaves some events without session, brand or
	// category; they must land as SQL NULL, not empty strings.
	_, err := ingest.Load(ctx, store, &ingest.SyntheticSource{Events: 2000, Seed: 3}, 500, zap.NewNop())
	require.NoError(t, err)

	var emptyStrings int64
	err = store.QueryRow(ctx, `
		SELECT COUNT(*) FROM events
		WHERE user_session = '' OR brand = '' OR category_code = ''`).Scan(&emptyStrings)
	require.NoError(t, err)
	assert.Zero(t, emptyStrings)

	var nullSessions int64
	err = store.QueryRow(ctx,
		"SELECT COUNT(*) FROM events WHERE user_session IS NULL").Scan(&nullSessions)
	require.NoError(t, err)
	assert.Positive(t, nullSessions)
}

func TestLoadFileCSV(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	csv := "event_time,event_type,product_id,category_id,category_code,brand,price,user_id,user_session\n" +
		"2019-10-01 09:00:00,view,100,1,electronics.smartphone,acme,10.5,1,s1\n" +
		"2019-10-01 08:00:00,purchase,101,1,electronics.smartphone,acme,99.9,2,s2\n"
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	result, err := ingest.LoadFile(ctx, store, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "file", result.Source)
	assert.Equal(t, int64(2), result.Rows)

	// Rows land sorted by event time.
	var firstType string
	err = store.QueryRow(ctx,
		"SELECT event_type FROM events ORDER BY event_time LIMIT 1").Scan(&firstType)
	require.NoError(t, err)
	assert.Equal(t, "purchase", firstType)
}

func TestLoadFileMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := ingest.LoadFile(context.Background(), store, filepath.Join(t.TempDir(), "nope.parquet"), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	store := openTestStore(t)

	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	_, err := ingest.LoadFile(context.Background(), store, path, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
