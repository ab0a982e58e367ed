package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLSource streams events out of a MySQL table. The DSN must include
// parseTime=true so event_time scans into time.Time.
type MySQLSource struct {
	DSN   string
	Table string

	db   *sql.DB
	rows *sql.Rows
}

func (ms *MySQLSource) Name() string {
	return "mysql"
}

func (ms *MySQLSource) Open(ctx context.Context) error {
	db, err := sql.Open("mysql", ms.DSN)
	if err != nil {
		return fmt.Errorf("failed to open mysql connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("mysql ping failed: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT event_time, event_type, product_id, category_id, category_code, brand, price, user_id, user_session FROM %s ORDER BY event_time",
		ms.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to query source table %s: %w", ms.Table, err)
	}

	ms.db = db
	ms.rows = rows
	return nil
}

func (ms *MySQLSource) Next(ctx context.Context, batch []Event) (int, error) {
	n := 0
	for n < len(batch) {
		if !ms.rows.Next() {
			if err := ms.rows.Err(); err != nil {
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
		if err := ms.rows.Scan(&e.EventTime, &e.EventType, &e.ProductID, &e.CategoryID,
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

func (ms *MySQLSource) Close() error {
	if ms.rows != nil {
		ms.rows.Close()
	}
	if ms.db != nil {
		return ms.db.Close()
	}
	return nil
}
