package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL reports edges to the `edges` table: (action, origin, target, ts,
// round, state), with ts defaulted to now(6) server-side. Every value is
// bound as a parameter rather than interpolated into the query string.
type MySQL struct {
	db *sql.DB
}

// OpenMySQL opens a connection pool against dsn (a
// github.com/go-sql-driver/mysql data source name) and verifies it with a
// ping.
func OpenMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql telemetry sink: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping mysql telemetry sink: %w", err)
	}

	return &MySQL{db: db}, nil
}

// Record inserts a single edge row.
func (m *MySQL) Record(ctx context.Context, action string, origin, target, round uint64, state string) error {
	const q = `INSERT INTO edges (action, origin, target, ts, round, state) VALUES (?, ?, ?, now(6), ?, ?)`

	_, err := m.db.ExecContext(ctx, q, action, origin, target, round, state)
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}

	return nil
}

// Close releases the underlying connection pool.
func (m *MySQL) Close() error {
	return m.db.Close()
}
