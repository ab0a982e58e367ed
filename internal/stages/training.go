package stages

import (
	"context"
	"fmt"
	"time"

	"behavior-warehouse/internal/database"
)

// TrainingSet builds the temporally split dataset for the propensity model:
// behavior strictly before the cutoff as features, any purchase on or after
// the cutoff as the binary target. The model fit itself happens elsewhere.
type TrainingSet struct {
	// Cutoff is a calendar date in 2006-01-02 form.
	Cutoff string
}

const queryTrainingSetTemplate = `
	CREATE OR REPLACE TABLE features_training AS
	WITH observed AS (
		SELECT
			user_id,
			COUNT(*) AS obs_events,
			COUNT(DISTINCT user_session) AS obs_sessions,
			CAST(SUM(CASE WHEN event_type = 'view' THEN 1 ELSE 0 END) AS BIGINT) AS obs_views,
			CAST(SUM(CASE WHEN event_type = 'cart' THEN 1 ELSE 0 END) AS BIGINT) AS obs_carts,
			CAST(SUM(CASE WHEN event_type = 'remove_from_cart' THEN 1 ELSE 0 END) AS BIGINT) AS obs_removes,
			date_diff('day', MIN(event_time), MAX(event_time)) AS active_span_days,
			date_diff('day', MAX(event_time), TIMESTAMP '%[1]s') AS recency_at_cutoff
		FROM events
		WHERE event_time < TIMESTAMP '%[1]s'
		GROUP BY user_id
	),
	outcome AS (
		SELECT user_id, 1 AS converted
		FROM events
		WHERE event_time >= TIMESTAMP '%[1]s' AND event_type = 'purchase'
		GROUP BY user_id
	)
	SELECT
		o.user_id,
		o.obs_events,
		o.obs_sessions,
		o.obs_views,
		o.obs_carts,
		o.obs_removes,
		o.active_span_days,
		o.recency_at_cutoff,
		COALESCE(n.converted, 0) AS target
	FROM observed o
	LEFT JOIN outcome n ON o.user_id = n.user_id;
`

func (TrainingSet) Name() string {
	return "training_set"
}

func (TrainingSet) Outputs() []string {
	return []string{"features_training"}
}

func (s TrainingSet) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "events"); err != nil {
		return err
	}
	cutoff, err := time.Parse("2006-01-02", s.Cutoff)
	if err != nil {
		return fmt.Errorf("invalid training cutoff %q: %w", s.Cutoff, err)
	}
	query := fmt.Sprintf(queryTrainingSetTemplate, cutoff.Format("2006-01-02 15:04:05"))
	return store.Exec(ctx, query)
}
