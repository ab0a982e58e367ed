package stages

import (
	"context"

	"behavior-warehouse/internal/database"
)

// Retention buckets users into weekly acquisition cohorts and computes the
// share of each cohort active at every week offset. Week 0 is always 1.0 by
// construction: the acquisition week counts as active. Low-N cohorts keep
// their rows; suppression is a display concern.
//
// The stage also publishes analysis_churn_risk, a per-user inactivity status
// against the dataset cutoff.
type Retention struct{}

const queryWeeklyRetention = `
	CREATE OR REPLACE TABLE analysis_weekly_retention AS
	WITH user_activity AS (
		SELECT
			u.user_id,
			date_trunc('week', u.first_seen) AS cohort_week,
			date_trunc('week', e.event_time) AS activity_week
		FROM dim_users u
		JOIN events e ON u.user_id = e.user_id
	),
	cohort_sizes AS (
		SELECT
			date_trunc('week', first_seen) AS cohort_week,
			COUNT(DISTINCT user_id) AS cohort_size
		FROM dim_users
		GROUP BY 1
	)
	SELECT
		ua.cohort_week,
		cs.cohort_size,
		date_diff('week', ua.cohort_week, ua.activity_week) AS weeks_since_first,
		COUNT(DISTINCT ua.user_id) AS active_users,
		CAST(COUNT(DISTINCT ua.user_id) AS DOUBLE) / cs.cohort_size AS retention_rate
	FROM user_activity ua
	JOIN cohort_sizes cs ON ua.cohort_week = cs.cohort_week
	GROUP BY 1, 2, 3
	ORDER BY 1, 3;
`

const queryChurnRisk = `
	CREATE OR REPLACE TABLE analysis_churn_risk AS
	SELECT
		user_id,
		last_seen,
		date_diff('day', last_seen, (SELECT MAX(event_time) FROM events)) AS days_inactive,
		CASE
			WHEN date_diff('day', last_seen, (SELECT MAX(event_time) FROM events)) > 14 THEN 'Churned'
			WHEN date_diff('day', last_seen, (SELECT MAX(event_time) FROM events)) > 7 THEN 'At Risk'
			ELSE 'Active'
		END AS status
	FROM dim_users;
`

func (Retention) Name() string {
	return "retention"
}

func (Retention) Outputs() []string {
	return []string{"analysis_weekly_retention", "analysis_churn_risk"}
}

func (Retention) Run(ctx context.Context, store *database.Store) error {
	if err := requireTables(ctx, store, "events", "dim_users"); err != nil {
		return err
	}
	if err := store.Exec(ctx, queryWeeklyRetention); err != nil {
		return err
	}
	return store.Exec(ctx, queryChurnRisk)
}
