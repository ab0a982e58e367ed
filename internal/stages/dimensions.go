package stages

import (
	"context"

	"behavior-warehouse/internal/database"
)

// Dimensions derives dim_products and dim_users from the full event store.
type Dimensions struct{}

// Latest-known product attributes. The winning row per product is the one
// with the highest event_time, lowest rowid on ties, so re-runs are
// deterministic. Null category/brand default to the literal 'unknown'.
const queryDimProducts = `
	CREATE OR REPLACE TABLE dim_products AS
	SELECT DISTINCT ON (product_id)
		product_id,
		category_id,
		COALESCE(category_code, 'unknown') AS category_code,
		COALESCE(brand, 'unknown') AS brand,
		price AS current_price
	FROM events
	WHERE product_id IS NOT NULL
	ORDER BY product_id, event_time DESC, rowid ASC;
`

const queryDimUsers = `
	CREATE OR REPLACE TABLE dim_users AS
	SELECT
		user_id,
		MIN(event_time) AS first_seen,
		MAX(event_time) AS last_seen,
		COUNT(*) AS event_count,
		COUNT(DISTINCT user_session) AS session_count,
		CAST(SUM(CASE WHEN event_type = 'purchase' THEN 1 ELSE 0 END) AS BIGINT) AS purchase_count,
		SUM(CASE WHEN event_type = 'purchase' THEN price ELSE 0 END) AS total_spend,
		BOOL_OR(event_type = 'purchase') AS is_buyer
	FROM events
	GROUP BY user_id;
`

func (Dimensions) Name() string {
	return "dimensions"
}

func (Dimensions) Outputs() []string {
	return []string{"dim_products", "dim_users"}
}

func (Dimensions) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "events"); err != nil {
		return err
	}
	if err := store.Exec(ctx, queryDimProducts); err != nil {
		return err
	}
	return store.Exec(ctx, queryDimUsers)
}
