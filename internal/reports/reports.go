package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"behavior-warehouse/internal/database"
)

// Fallback is what a dashboard shows for a report whose backing tables have
// not been built yet.
const Fallback = "N/A"

// Report is one read-only query result, column-name keyed so any consumer
// can render it without knowing the shape in advance.
type Report struct {
	Name          string                   `json:"name"`
	GeneratedAt   time.Time                `json:"generated_at"`
	Rows          []map[string]interface{} `json:"rows"`
	MissingTables []string                 `json:"missing_tables,omitempty"`
	Fallback      string                   `json:"fallback,omitempty"`
}

type reportSpec struct {
	query  string
	tables []string
}

var specs = map[string]reportSpec{
	"funnel":           {query: QueryFunnel, tables: []string{"fact_sessions"}},
	"segments":         {query: QuerySegments, tables: []string{"analysis_rfm_segments"}},
	"retention_matrix": {query: QueryRetentionMatrix, tables: []string{"analysis_weekly_retention"}},
	"affinity_top":     {query: QueryAffinityTop, tables: []string{"predictions_product_affinity", "dim_products"}},
	"daily_kpis":       {query: QueryDailyKPIs, tables: []string{"fact_daily_kpis"}},
	"dataset_info":     {query: QueryDatasetInfo, tables: []string{"events"}},
}

// Names lists the available reports, sorted.
func Names() []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Client is the dashboard collaborator boundary: read-only queries against
// the published tables, tolerant of tables that do not exist yet.
type Client struct {
	store  *database.Store
	logger *zap.Logger
}

func NewClient(store *database.Store, logger *zap.Logger) *Client {
	return &Client{store: store, logger: logger}
}

func (c *Client) Run(ctx context.Context, name string) (*Report, error) {
	spec, ok := specs[name]
	if !ok {
		return nil, fmt.Errorf("unknown report: %s", name)
	}

	report := &Report{
		Name:        name,
		GeneratedAt: time.Now().UTC(),
		Rows:        []map[string]interface{}{},
	}

	for _, table := range spec.tables {
		exists, err := c.store.TableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			report.MissingTables = append(report.MissingTables, table)
		}
	}
	if len(report.MissingTables) > 0 {
		report.Fallback = Fallback
		c.logger.Warn("report tables not built yet",
			zap.String("report", name),
			zap.Strings("missing", report.MissingTables))
		return report, nil
	}

	rows, err := c.store.Query(ctx, spec.query)
	if err != nil {
		return nil, fmt.Errorf("report %s failed: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		values := make([]interface{}, len(cols))
		pointers := make([]interface{}, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		report.Rows = append(report.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.logger.Info("report generated", zap.String("report", name), zap.Int("rows", len(report.Rows)))
	return report, nil
}
