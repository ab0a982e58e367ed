package stages

import (
	"context"
	"fmt"

	"behavior-warehouse/internal/database"
)

// Affinity computes co-purchase association rules from per-session baskets.
// Only the canonical product_a < product_b direction is stored, so no
// unordered pair appears twice and no rule pairs a product with itself.
//
// The self-join is the expensive step: baskets are pre-filtered to purchase
// events and pairs are aggregated with the minimum-support filter in the same
// pass, never materialized unfiltered.
type Affinity struct {
	// MinSupport is the co-occurrence floor for a pair to survive.
	MinSupport int
	// LiftThreshold drops rules without meaningful positive association.
	LiftThreshold float64
}

const queryAffinityTemplate = `
	CREATE OR REPLACE TABLE predictions_product_affinity AS
	WITH baskets AS (
		SELECT DISTINCT user_session, product_id
		FROM events
		WHERE event_type = 'purchase'
		  AND user_session IS NOT NULL
		  AND product_id IS NOT NULL
	),
	pair_stats AS (
		SELECT
			a.product_id AS product_a,
			b.product_id AS product_b,
			COUNT(*) AS pair_count
		FROM baskets a
		JOIN baskets b
		  ON a.user_session = b.user_session
		 AND a.product_id < b.product_id
		GROUP BY 1, 2
		HAVING COUNT(*) >= %[1]d
	),
	product_support AS (
		SELECT product_id, COUNT(DISTINCT user_session) AS support
		FROM baskets
		GROUP BY 1
	),
	totals AS (
		SELECT COUNT(DISTINCT user_session) AS total_sessions FROM baskets
	)
	SELECT
		ps.product_a,
		ps.product_b,
		ps.pair_count,
		CAST(ps.pair_count AS DOUBLE) / pa.support AS confidence,
		CAST(ps.pair_count AS DOUBLE) * t.total_sessions / (pa.support * pb.support) AS lift
	FROM pair_stats ps
	JOIN product_support pa ON ps.product_a = pa.product_id
	JOIN product_support pb ON ps.product_b = pb.product_id
	CROSS JOIN totals t
	WHERE CAST(ps.pair_count AS DOUBLE) * t.total_sessions / (pa.support * pb.support) > %[2]g
	ORDER BY lift DESC;
`

func (Affinity) Name() string {
	return "affinity"
}

func (Affinity) Outputs() []string {
	return []string{"predictions_product_affinity"}
}

func (s Affinity) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "events"); err != nil {
		return err
	}
	if s.MinSupport < 1 {
		return fmt.Errorf("min support must be >= 1, got %d", s.MinSupport)
	}
	return store.Exec(ctx, fmt.Sprintf(queryAffinityTemplate, s.MinSupport, s.LiftThreshold))
}
