package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
)

// PostgresSource streams events out of a Postgres table ordered by event
// time, so the event store lands pre-sorted for the downstream stages.
type PostgresSource struct {
	DSN   string
	Table string

	conn *pgx.Conn
	rows pgx.Rows
}

func (ps *PostgresSource) Name() string {
	return "postgres"
}

func (ps *PostgresSource) Open(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, ps.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT event_time, event_type, product_id, category_id, category_code, brand, price, user_id, user_session FROM %s ORDER BY event_time",
		ps.Table)
	rows, err := conn.Query(ctx, query)
	if err != nil {
		conn.Close(ctx)
		return fmt.Errorf("failed to query source table %s: %w", ps.Table, err)
	}

	ps.conn = conn
	ps.rows = rows
	return nil
}

func (ps *PostgresSource) Next(ctx context.Context, batch []Event) (int, error) {
	n := 0
	for n < len(batch) {
		if !ps.rows.Next() {
			if err := ps.rows.Err(); err != nil {
				return n, err
			}
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}

		var (
			categoryCode sql.NullString
			brand        sql.NullString
			session      sql.NullString
		)
		e := &batch[n]
		if err := ps.rows.Scan(&e.EventTime, &e.EventType, &e.ProductID, &e.CategoryID,
			&categoryCode, &brand, &e.Price, &e.UserID, &session); err != nil {
			return n, err
		}
		e.CategoryCode = categoryCode.String
		e.Brand = brand.String
		e.UserSession = session.String
		n++
	}
	return n, nil
}

func (ps *PostgresSource) Close() error {
	if ps.rows != nil {
		ps.rows.Close()
	}
	if ps.conn != nil {
		return ps.conn.Close(context.Background())
	}
	return nil
}
