package stages

import (
	"context"
	"fmt"

	"behavior-warehouse/internal/database"
)

// Features left-joins the user dimension with the RFM table and a per-user
// rollup of session statistics into the wide table the propensity model
// consumes. Users absent from a source table get defined sentinels: -1
// recency, zero counts and rates, and the Browser segment.
type Features struct{}

const queryFeaturesTemplate = `
	CREATE OR REPLACE TABLE features_users AS
	WITH session_features AS (
		SELECT
			user_id,
			COUNT(user_session) AS total_sessions,
			AVG(duration_sec) AS avg_session_duration,
			COALESCE(STDDEV(duration_sec), 0) AS std_session_duration,
			AVG(event_count) AS avg_events_per_session,
			CAST(SUM(CAST(has_cart AS INT)) AS DOUBLE) / COUNT(user_session) AS cart_rate,
			CASE
				WHEN SUM(CAST(has_cart AS INT)) = 0 THEN 0
				ELSE CAST(SUM(CAST(has_purchase AS INT)) AS DOUBLE) / SUM(CAST(has_cart AS INT))
			END AS checkout_rate
		FROM fact_sessions
		GROUP BY user_id
	)
	SELECT
		u.user_id,
		u.total_spend,
		u.purchase_count,
		u.event_count,
		u.first_seen,
		u.last_seen,
		COALESCE(r.recency_days, -1) AS recency_days,
		COALESCE(r.frequency_count, 0) AS frequency_raw,
		COALESCE(r.monetary_value, 0) AS monetary_raw,
		COALESCE(r.segment_name, '%s') AS rfm_segment,
		COALESCE(r.rfm_code, '000') AS rfm_code,
		COALESCE(s.total_sessions, 0) AS total_sessions,
		COALESCE(s.avg_session_duration, 0) AS avg_session_duration,
		COALESCE(s.std_session_duration, 0) AS std_session_duration,
		COALESCE(s.avg_events_per_session, 0) AS avg_events_per_session,
		COALESCE(s.cart_rate, 0) AS cart_rate,
		COALESCE(s.checkout_rate, 0) AS checkout_rate
	FROM dim_users u
	LEFT JOIN analysis_rfm_segments r ON u.user_id = r.user_id
	LEFT JOIN session_features s ON u.user_id = s.user_id;
`

func (Features) Name() string {
	return "features"
}

func (Features) Outputs() []string {
	return []string{"features_users"}
}

func (Features) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "dim_users", "analysis_rfm_segments", "fact_sessions"); err != nil {
		return err
	}
	return store.Exec(ctx, fmt.Sprintf(queryFeaturesTemplate, BrowserSegment))
}
