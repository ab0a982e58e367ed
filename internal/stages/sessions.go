package stages

import (
	"context"

	"behavior-warehouse/internal/database"
)

// Sessions groups events sharing a session identifier into fact_sessions.
// Events without a session identifier are excluded.
type Sessions struct{}

const querySessions = `
	CREATE OR REPLACE TABLE fact_sessions AS
	SELECT
		user_session,
		MAX(user_id) AS user_id,
		MIN(event_time) AS session_start,
		MAX(event_time) AS session_end,
		date_diff('second', MIN(event_time), MAX(event_time)) AS duration_sec,
		COUNT(*) AS event_count,
		COUNT(DISTINCT product_id) AS unique_products,
		BOOL_OR(event_type = 'view') AS has_view,
		BOOL_OR(event_type = 'cart') AS has_cart,
		BOOL_OR(event_type = 'remove_from_cart') AS has_remove,
		BOOL_OR(event_type = 'purchase') AS has_purchase,
		SUM(CASE WHEN event_type = 'purchase' THEN price ELSE 0 END) AS session_revenue
	FROM events
	WHERE user_session IS NOT NULL
	GROUP BY user_session;
`

func (Sessions) Name() string {
	return "sessions"
}

func (Sessions) Outputs() []string {
	return []string{"fact_sessions"}
}

func (Sessions) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "events"); err != nil {
		return err
	}
	return store.Exec(ctx, querySessions)
}
