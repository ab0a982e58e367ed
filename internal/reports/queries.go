package reports

// Session-based conversion funnel. The rate divisions are guarded with
// NULLIF: zero view-sessions yields NULL rates, never an error.
const QueryFunnel = `
	SELECT
		CAST(SUM(CAST(has_view AS INT)) AS BIGINT) AS sessions_with_view,
		CAST(SUM(CAST(has_cart AS INT)) AS BIGINT) AS sessions_with_cart,
		CAST(SUM(CAST(has_purchase AS INT)) AS BIGINT) AS sessions_with_purchase,
		CAST(SUM(CAST(has_cart AS INT)) AS DOUBLE) / NULLIF(SUM(CAST(has_view AS INT)), 0) AS view_to_cart_rate,
		CAST(SUM(CAST(has_purchase AS INT)) AS DOUBLE) / NULLIF(SUM(CAST(has_cart AS INT)), 0) AS cart_to_purchase_rate,
		CAST(SUM(CAST(has_purchase AS INT)) AS DOUBLE) / NULLIF(COUNT(*), 0) AS overall_conversion
	FROM fact_sessions;
`

// Segment distribution across buyers, richest segments first.
const QuerySegments = `
	SELECT
		segment_name,
		COUNT(*) AS user_count,
		ROUND(AVG(monetary_value), 2) AS avg_spend,
		ROUND(AVG(recency_days), 1) AS avg_recency
	FROM analysis_rfm_segments
	GROUP BY 1
	ORDER BY avg_spend DESC;
`

const QueryRetentionMatrix = `
	SELECT cohort_week, cohort_size, weeks_since_first, active_users, retention_rate
	FROM analysis_weekly_retention
	ORDER BY cohort_week, weeks_since_first;
`

// Top association rules enriched with product metadata for display.
const QueryAffinityTop = `
	SELECT
		r.product_a,
		da.brand AS brand_a,
		da.category_code AS category_a,
		r.product_b,
		db.brand AS brand_b,
		db.category_code AS category_b,
		r.pair_count,
		ROUND(r.confidence, 4) AS confidence,
		ROUND(r.lift, 2) AS lift
	FROM predictions_product_affinity r
	JOIN dim_products da ON r.product_a = da.product_id
	JOIN dim_products db ON r.product_b = db.product_id
	ORDER BY r.lift DESC
	LIMIT 25;
`

const QueryDailyKPIs = `
	SELECT date, total_events, dau, daily_sessions, total_views, total_carts, total_purchases, daily_revenue
	FROM fact_daily_kpis
	ORDER BY date;
`

const QueryDatasetInfo = `
	SELECT
		COUNT(*) AS total_events,
		COUNT(DISTINCT user_id) AS total_users,
		COUNT(DISTINCT product_id) AS total_products,
		MIN(event_time) AS start_date,
		MAX(event_time) AS end_date
	FROM events;
`
