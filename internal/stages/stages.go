// Package stages holds the SQL transformation steps that turn the raw event
// store into the star schema and the derived analytics tables. Each stage
// publishes its outputs with CREATE OR REPLACE TABLE, so re-running a stage
// on an unchanged event store reproduces the same tables.
package stages

import (
	"context"
	"fmt"

	"behavior-warehouse/internal/database"
)

// requireTables aborts a stage with a clear message when an input table is
// missing, before any partial output is written.
func requireTables(ctx context.Context, store *database.Store, tables ...string) error {
	for _, table := range tables {
		exists, err := store.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("required input table %s is missing", table)
		}
	}
	return nil
}
