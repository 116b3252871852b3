package migrations

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const chVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    String,
    name       String,
    applied_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree
ORDER BY version`

// ApplyClickhouse applies every embedded ClickHouse migration not yet
// recorded in schema_migrations of the connection's database. ClickHouse has
// no DDL transactions, so statements must be idempotent (IF NOT EXISTS):
// a migration interrupted halfway is simply re-run.
func ApplyClickhouse(ctx context.Context, conn driver.Conn) ([]string, error) {
	ms, err := Load(Clickhouse)
	if err != nil {
		return nil, err
	}
	if err := conn.Exec(ctx, chVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	done, err := chApplied(ctx, conn)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range ms {
		if done[m.Version] {
			continue
		}
		for _, stmt := range Statements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		if err := conn.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name,
		); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}

func chApplied(ctx context.Context, conn driver.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations FINAL`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}
