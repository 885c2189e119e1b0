package collector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Upload is one received file as recorded in the index.
type Upload struct {
	ID         string    `json:"id"`
	Peer       string    `json:"peer"`
	File       string    `json:"file"`
	Bytes      int64     `json:"bytes"`
	Records    int64     `json:"records"`
	Partial    bool      `json:"partial"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Index records received uploads in a SQL table. Supported drivers are
// "sqlite", "postgres" and "mysql".
type Index struct {
	db     *sql.DB
	driver string
	table  string
}

// OpenIndex connects to the database and creates the uploads table if
// needed.
func OpenIndex(ctx context.Context, driver, dsn string) (*Index, error) {
	switch driver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("collector: unsupported index driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("collector: open index: %w", err)
	}
	if driver == "sqlite" {
		// single writer
		db.SetMaxOpenConns(1)
	}
	idx := &Index{db: db, driver: driver, table: "uploads"}
	if err := idx.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (x *Index) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(64) PRIMARY KEY,
	peer VARCHAR(255) NOT NULL,
	file VARCHAR(255) NOT NULL,
	bytes BIGINT NOT NULL,
	records BIGINT NOT NULL,
	truncated INTEGER NOT NULL,
	received_at BIGINT NOT NULL
)`, x.table)
	if _, err := x.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("collector: create %s: %w", x.table, err)
	}
	return nil
}

// ph returns the n-th (1-based) bind placeholder for the dialect.
func (x *Index) ph(n int) string {
	if x.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (x *Index) phs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = x.ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

// Insert adds u to the index.
func (x *Index) Insert(ctx context.Context, u Upload) error {
	q := fmt.Sprintf("INSERT INTO %s (id, peer, file, bytes, records, truncated, received_at) VALUES (%s)", x.table, x.phs(7))
	partial := 0
	if u.Partial {
		partial = 1
	}
	_, err := x.db.ExecContext(ctx, q, u.ID, u.Peer, u.File, u.Bytes, u.Records, partial, u.ReceivedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("collector: index %s: %w", u.ID, err)
	}
	return nil
}

// List returns the most recent uploads, newest first. limit <= 0 means 100.
func (x *Index) List(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT id, peer, file, bytes, records, truncated, received_at FROM %s ORDER BY received_at DESC, id LIMIT %s", x.table, x.ph(1))
	rows, err := x.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("collector: list: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var u Upload
		var partial int
		var ms int64
		if err := rows.Scan(&u.ID, &u.Peer, &u.File, &u.Bytes, &u.Records, &partial, &ms); err != nil {
			return nil, fmt.Errorf("collector: scan: %w", err)
		}
		u.Partial = partial != 0
		u.ReceivedAt = time.UnixMilli(ms).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (x *Index) Ping(ctx context.Context) error { return x.db.PingContext(ctx) }

// Close closes the database.
func (x *Index) Close() error { return x.db.Close() }
