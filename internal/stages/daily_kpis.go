package stages

import (
	"context"

	"behavior-warehouse/internal/database"
)

// DailyKPIs aggregates the event store into one row per calendar day.
type DailyKPIs struct{}

const queryDailyKPIs = `
	CREATE OR REPLACE TABLE fact_daily_kpis AS
	SELECT
		CAST(event_time AS DATE) AS date,
		COUNT(*) AS total_events,
		COUNT(DISTINCT user_id) AS dau,
		COUNT(DISTINCT user_session) AS daily_sessions,
		CAST(SUM(CASE WHEN event_type = 'view' THEN 1 ELSE 0 END) AS BIGINT) AS total_views,
		CAST(SUM(CASE WHEN event_type = 'cart' THEN 1 ELSE 0 END) AS BIGINT) AS total_carts,
		CAST(SUM(CASE WHEN event_type = 'purchase' THEN 1 ELSE 0 END) AS BIGINT) AS total_purchases,
		SUM(CASE WHEN event_type = 'purchase' THEN price ELSE 0 END) AS daily_revenue
	FROM events
	GROUP BY 1
	ORDER BY 1;
`

func (DailyKPIs) Name() string {
	return "daily_kpis"
}

func (DailyKPIs) Outputs() []string {
	return []string{"fact_daily_kpis"}
}

func (DailyKPIs) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "events"); err != nil {
		return err
	}
	return store.Exec(ctx, queryDailyKPIs)
}
