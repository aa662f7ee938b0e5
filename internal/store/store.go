// Package store keeps a history of reconciliation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finrecon/internal/discrepancy"
	"finrecon/internal/recon"
)

var ErrRunNotFound = errors.New("run not found")

// Fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	created_at        TEXT NOT NULL,
	status            TEXT NOT NULL,
	left_source       TEXT NOT NULL,
	right_source      TEXT NOT NULL,
	left_rows         INTEGER NOT NULL,
	right_rows        INTEGER NOT NULL,
	matched_rows      INTEGER NOT NULL,
	total_cells       INTEGER NOT NULL,
	mismatching_cells INTEGER NOT NULL,
	mismatch_pct      REAL NOT NULL,
	overall_match     INTEGER NOT NULL,
	report_json       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS discrepancies (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	row_key       TEXT NOT NULL,
	keys_json     TEXT NOT NULL,
	account       TEXT NOT NULL,
	column_name   TEXT NOT NULL,
	variance      REAL NOT NULL,
	missing_left  INTEGER NOT NULL,
	missing_right INTEGER NOT NULL,
	severity      TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

type RunSummary struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	Status             string    `json:"status"`
	LeftSource         string    `json:"left_source"`
	RightSource        string    `json:"right_source"`
	LeftRows           int       `json:"left_rows"`
	RightRows          int       `json:"right_rows"`
	MatchedRows        int       `json:"matched_rows"`
	TotalCells         int       `json:"total_cells"`
	MismatchingCells   int       `json:"mismatching_cells"`
	MismatchPercentage float64   `json:"mismatch_percentage"`
	OverallMatch       bool      `json:"overall_match"`
}

// Run is a stored summary plus the full report exactly as it was saved.
type Run struct {
	RunSummary
	Report json.RawMessage `json:"report"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and schema when missing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun stores rep and its discrepancy records in one transaction and
// returns the new run id.
func (s *Store) SaveRun(ctx context.Context, rep recon.Report, leftSource, rightSource string) (string, error) {
	payload, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (id, created_at, status, left_source, right_source,
		left_rows, right_rows, matched_rows, total_cells, mismatching_cells, mismatch_pct, overall_match, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now().Format(timeLayout), string(rep.Status), leftSource, rightSource,
		rep.LeftRows, rep.RightRows, rep.MatchedRows, rep.Summary.TotalCells, rep.Summary.MismatchingCells,
		rep.Summary.MismatchPercentage, boolInt(rep.Summary.OverallMatch), string(payload))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO discrepancies (run_id, seq, row_key, keys_json, account,
		column_name, variance, missing_left, missing_right, severity) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, d := range rep.Discrepancies {
		keys, err := json.Marshal(d.Keys)
		if err != nil {
			return "", err
		}
		if _, err := stmt.ExecContext(ctx, id, i, d.Key, string(keys), d.Account, d.Column, d.Variance,
			boolInt(d.MissingInLeft), boolInt(d.MissingInRight), string(d.Severity)); err != nil {
			return "", fmt.Errorf("insert discrepancy %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

const summaryColumns = `id, created_at, status, left_source, right_source, left_rows, right_rows,
	matched_rows, total_cells, mismatching_cells, mismatch_pct, overall_match`

// ListRuns returns the newest runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	q := `SELECT ` + summaryColumns + ` FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		rs, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// GetRun wraps ErrRunNotFound for unknown ids.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var report string
	var run Run
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+`, report_json FROM runs WHERE id = ?`, id)
	summary, err := scanSummary(func(dest ...any) error { return row.Scan(append(dest, &report)...) })
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return Run{}, err
	}
	run.RunSummary = summary
	run.Report = json.RawMessage(report)
	return run, nil
}

// Discrepancies returns the stored records of one run in their original
// order.
func (s *Store) Discrepancies(ctx context.Context, id string) ([]discrepancy.Record, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT row_key, keys_json, account, column_name, variance,
		missing_left, missing_right, severity FROM discrepancies WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []discrepancy.Record{}
	for rows.Next() {
		var d discrepancy.Record
		var keys, severity string
		var missingLeft, missingRight int
		if err := rows.Scan(&d.Key, &keys, &d.Account, &d.Column, &d.Variance, &missingLeft, &missingRight, &severity); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keys), &d.Keys); err != nil {
			return nil, fmt.Errorf("decode keys: %w", err)
		}
		d.MissingInLeft = missingLeft != 0
		d.MissingInRight = missingRight != 0
		d.Severity = discrepancy.Severity(severity)
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanSummary(scan func(dest ...any) error) (RunSummary, error) {
	var rs RunSummary
	var created string
	var overall int
	if err := scan(&rs.ID, &created, &rs.Status, &rs.LeftSource, &rs.RightSource, &rs.LeftRows, &rs.RightRows,
		&rs.MatchedRows, &rs.TotalCells, &rs.MismatchingCells, &rs.MismatchPercentage, &overall); err != nil {
		return RunSummary{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return RunSummary{}, fmt.Errorf("parse created_at: %w", err)
	}
	rs.CreatedAt = t
	rs.OverallMatch = overall != 0
	return rs, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
