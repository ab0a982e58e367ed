package stages

import (
	"context"
	"fmt"

	"behavior-warehouse/internal/database"
)

// RFM scores every buyer on recency, frequency and monetary value and
// assigns a rule-based segment. Non-buyers never appear here; downstream
// consumers default them to the Browser sentinel.
//
// Recency is anchored to the dataset's MAX(event_time), never wall clock, so
// the output is a pure function of the event store snapshot. Frequency is the
// count of purchase events (not distinct purchase days).
type RFM struct {
	// QuantileCount is the number of score buckets per metric, 5 in
	// production.
	QuantileCount int
}

func (RFM) Name() string {
	return "rfm"
}

func (RFM) Outputs() []string {
	return []string{"analysis_rfm_segments"}
}

func (s RFM) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "events"); err != nil {
		return err
	}
	q := s.QuantileCount
	if q <= 0 {
		q = 5
	}

	// NTILE orderings carry user_id as a final tie-break so equal metric
	// values land in the same bucket on every run. The recency score is
	// inverted: the most recent buyer (lowest recency_days) gets the top
	// score.
	query := fmt.Sprintf(`
		CREATE OR REPLACE TABLE analysis_rfm_segments AS
		WITH rfm_base AS (
			SELECT
				user_id,
				date_diff('day', MAX(event_time), (SELECT MAX(event_time) FROM events)) AS recency_days,
				COUNT(*) AS frequency_count,
				SUM(price) AS monetary_value
			FROM events
			WHERE event_type = 'purchase'
			GROUP BY user_id
		),
		scores AS (
			SELECT
				user_id,
				recency_days,
				frequency_count,
				monetary_value,
				%[1]d + 1 - NTILE(%[1]d) OVER (ORDER BY recency_days, user_id) AS r_score,
				NTILE(%[1]d) OVER (ORDER BY frequency_count, user_id) AS f_score,
				NTILE(%[1]d) OVER (ORDER BY monetary_value, user_id) AS m_score
			FROM rfm_base
		)
		SELECT
			*,
			CAST(r_score AS VARCHAR) || CAST(f_score AS VARCHAR) || CAST(m_score AS VARCHAR) AS rfm_code,
			%s AS segment_name
		FROM scores;
	`, q, segmentCaseSQL())

	return store.Exec(ctx, query)
}
