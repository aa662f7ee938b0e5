package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"finrecon/internal/table"
)

var driverAliases = map[string]string{
	"sqlite":     "sqlite",
	"sqlite3":    "sqlite",
	"mysql":      "mysql",
	"pgx":        "pgx",
	"postgres":   "pgx",
	"postgresql": "pgx",
}

// DriverName maps a user-facing driver name to a registered database/sql
// driver.
func DriverName(name string) (string, error) {
	d, ok := driverAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: driver %q", ErrUnsupportedFormat, name)
	}
	return d, nil
}

// OpenDB opens dsn with the registered driver behind an alias like "postgres".
func OpenDB(driver, dsn string) (*sql.DB, error) {
	d, err := DriverName(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	return db, nil
}

// Query opens dsn, runs q and returns the result as a row set. An empty q
// against sqlite reads the first user table.
func Query(ctx context.Context, driver, dsn, q string, args ...any) (*table.RowSet, error) {
	db, err := OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if strings.TrimSpace(q) == "" {
		d, _ := DriverName(driver)
		if d != "sqlite" {
			return nil, errors.New("a query is required for non-sqlite sources")
		}
		name, err := FirstTable(ctx, db)
		if err != nil {
			return nil, err
		}
		q = "SELECT * FROM " + quoteIdent(name)
	}
	return QueryDB(ctx, db, q, args...)
}

// LoadSQLiteTable reads a whole table, or the first user table when name is
// empty.
func LoadSQLiteTable(path, name string) (*table.RowSet, error) {
	q := ""
	if name != "" {
		q = "SELECT * FROM " + quoteIdent(name)
	}
	return Query(context.Background(), "sqlite", path, q)
}

// QueryDB runs q on an open handle.
func QueryDB(ctx context.Context, db *sql.DB, q string, args ...any) (*table.RowSet, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	cols = UniqueHeaders(cols)
	var out []table.Row
	for rows.Next() {
		values := make([]any, len(cols))
		scans := make([]any, len(cols))
		for i := range values {
			scans[i] = &values[i]
		}
		if err := rows.Scan(scans...); err != nil {
			return nil, err
		}
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table.New(cols, out), nil
}

// FirstTable names the alphabetically first user table of a SQLite database.
func FirstTable(ctx context.Context, db *sql.DB) (string, error) {
	const q = `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name LIMIT 1`
	var name string
	if err := db.QueryRowContext(ctx, q).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no user tables found")
		}
		return "", err
	}
	return name, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
