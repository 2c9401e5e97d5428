// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		term TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS cooccurrences (
		term_id INTEGER NOT NULL,
		neighbor_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (term_id, neighbor_id, year),
		FOREIGN KEY (term_id) REFERENCES terms(id),
		FOREIGN KEY (neighbor_id) REFERENCES terms(id)
	);

	CREATE INDEX IF NOT EXISTS idx_cooccurrences_term_year ON cooccurrences(term_id, year);
	`
	_, err := db.Exec(schema)
	return err
}

// TermID returns the ID of term.
func (s *SQLiteStorage) TermID(ctx context.Context, term string) (int, bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `SELECT id FROM terms WHERE term = ?`, term).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup term %q: %w", term, err)
	}
	return id, true, nil
}

// Term returns the term with the given ID.
func (s *SQLiteStorage) Term(ctx context.Context, id int) (string, bool, error) {
	var term string
	err := s.db.QueryRowContext(ctx, `SELECT term FROM terms WHERE id = ?`, id).Scan(&term)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup term id %d: %w", id, err)
	}
	return term, true, nil
}

// Terms calls fn for every dictionary entry in ID order.
func (s *SQLiteStorage) Terms(ctx context.Context, fn func(id int, term string) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, term FROM terms ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scan terms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var term string
		if err := rows.Scan(&id, &term); err != nil {
			return err
		}
		if err := fn(id, term); err != nil {
			return err
		}
	}
	return rows.Err()
}

// TermFrequencies calls fn for every term with its total co-occurrence count,
// in ID order. Terms only ever seen as neighbors report 0.
func (s *SQLiteStorage) TermFrequencies(ctx context.Context, fn func(term string, total int64) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.term, COALESCE(SUM(c.count), 0) FROM terms t
		 LEFT JOIN cooccurrences c ON c.term_id = t.id
		 GROUP BY t.id ORDER BY t.id`,
	)
	if err != nil {
		return fmt.Errorf("scan term frequencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var term string
		var total int64
		if err := rows.Scan(&term, &total); err != nil {
			return err
		}
		if err := fn(term, total); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Cooccurrences calls fn for every entry of termID within [start, end].
func (s *SQLiteStorage) Cooccurrences(ctx context.Context, termID, start, end int, fn func(Cooccurrence) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT neighbor_id, year, count FROM cooccurrences
		 WHERE term_id = ? AND year BETWEEN ? AND ?
		 ORDER BY neighbor_id, year`,
		termID, start, end,
	)
	if err != nil {
		return fmt.Errorf("query co-occurrences of %d: %w", termID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Cooccurrence
		if err := rows.Scan(&c.NeighborID, &c.Year, &c.Count); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Import loads tab-separated `term neighbor year count` records in one
// transaction. Blank lines and lines starting with '#' are skipped. Counts for
// a (term, neighbor, year) already present are added to.
func (s *SQLiteStorage) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	insertTerm, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO terms (term) VALUES (?)`)
	if err != nil {
		return stats, err
	}
	defer insertTerm.Close()
	selectTerm, err := tx.PrepareContext(ctx, `SELECT id FROM terms WHERE term = ?`)
	if err != nil {
		return stats, err
	}
	defer selectTerm.Close()
	upsert, err := tx.PrepareContext(ctx,
		`INSERT INTO cooccurrences (term_id, neighbor_id, year, count) VALUES (?, ?, ?, ?)
		 ON CONFLICT (term_id, neighbor_id, year) DO UPDATE SET count = count + excluded.count`,
	)
	if err != nil {
		return stats, err
	}
	defer upsert.Close()

	ids := make(map[string]int)
	termID := func(term string) (int, error) {
		if id, ok := ids[term]; ok {
			return id, nil
		}
		res, err := insertTerm.ExecContext(ctx, term)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.Terms++
		}
		var id int
		if err := selectTerm.QueryRowContext(ctx, term).Scan(&id); err != nil {
			return 0, err
		}
		ids[term] = id
		return id, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := parseRecord(text)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.count <= 0 {
			stats.Skipped++
			continue
		}
		tid, err := termID(rec.term)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		nid, err := termID(rec.neighbor)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := upsert.ExecContext(ctx, tid, nid, rec.year, rec.count); err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		stats.Records++
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read import: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return stats, err
	}
	return stats, nil
}

type record struct {
	term, neighbor string
	year, count    int
}

func parseRecord(line string) (record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return record{}, fmt.Errorf("expected 4 tab-separated fields, got %d", len(fields))
	}
	rec := record{term: strings.TrimSpace(fields[0]), neighbor: strings.TrimSpace(fields[1])}
	if rec.term == "" || rec.neighbor == "" {
		return record{}, errors.New("empty term")
	}
	var err error
	if rec.year, err = strconv.Atoi(strings.TrimSpace(fields[2])); err != nil {
		return record{}, fmt.Errorf("invalid year %q", fields[2])
	}
	if rec.count, err = strconv.Atoi(strings.TrimSpace(fields[3])); err != nil {
		return record{}, fmt.Errorf("invalid count %q", fields[3])
	}
	return rec, nil
}

// CountTerms returns the dictionary size.
func (s *SQLiteStorage) CountTerms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM terms`).Scan(&count)
	return count, err
}

// CountCooccurrences returns the number of stored (term, neighbor, year) counts.
func (s *SQLiteStorage) CountCooccurrences(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cooccurrences`).Scan(&count)
	return count, err
}

// YearRange returns the first and last year with any co-occurrence.
func (s *SQLiteStorage) YearRange(ctx context.Context) (int, int, bool, error) {
	var lo, hi sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MIN(year), MAX(year) FROM cooccurrences`).Scan(&lo, &hi)
	if err != nil {
		return 0, 0, false, err
	}
	if !lo.Valid {
		return 0, 0, false, nil
	}
	return int(lo.Int64), int(hi.Int64), true, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
