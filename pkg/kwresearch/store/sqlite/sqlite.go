package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
	"github.com/cognicore/kwresearch/pkg/kwresearch/store"
)

// maxParams keeps IN lists well under SQLite's bound variable limit.
const maxParams = 500

// sqliteStore implements store.Cache on SQLite.
type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the verdict cache at path with WAL mode enabled and the
// schema created.
func OpenSQLite(ctx context.Context, path string) (store.Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}
	// A single connection serializes writers from concurrent runs and keeps
	// per-connection pragmas in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %v: %w", err, internalerr.ErrStoreUnavailable)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("busy timeout: %v: %w", err, internalerr.ErrStoreUnavailable)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %v: %w", err, internalerr.ErrStoreUnavailable)
	}

	return &sqliteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS brand_verdicts (
	keyword TEXT PRIMARY KEY,
	branded INTEGER NOT NULL,
	rationale TEXT NOT NULL DEFAULT '',
	stage INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS relevance_verdicts (
	product TEXT NOT NULL,
	keyword TEXT NOT NULL,
	score INTEGER NOT NULL,
	rationale TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	PRIMARY KEY(product, keyword)
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) GetBrands(ctx context.Context, keys []string) (map[string]store.BrandEntry, error) {
	out := make(map[string]store.BrandEntry)
	for _, chunk := range chunks(keys) {
		query := `SELECT keyword, branded, rationale, stage, updated_at FROM brand_verdicts WHERE keyword IN (` + placeholders(len(chunk)) + `)`
		rows, err := s.db.QueryContext(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				e       store.BrandEntry
				branded int
				stage   int
				updated string
			)
			if err := rows.Scan(&e.Key, &branded, &e.Rationale, &stage, &updated); err != nil {
				rows.Close()
				return nil, err
			}
			if branded != 0 {
				e.Status = keyword.Branded
			}
			e.Stage = keyword.Stage(stage)
			e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
			out[e.Key] = e
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *sqliteStore) PutBrands(ctx context.Context, entries []store.BrandEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO brand_verdicts(keyword, branded, rationale, stage, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(keyword) DO UPDATE SET
	branded=excluded.branded,
	rationale=excluded.rationale,
	stage=excluded.stage,
	updated_at=excluded.updated_at;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		branded := 0
		if e.Status == keyword.Branded {
			branded = 1
		}
		if _, err := stmt.ExecContext(ctx, e.Key, branded, e.Rationale, int(e.Stage), s.stamp(e.UpdatedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) GetRelevance(ctx context.Context, product string, keys []string) (map[string]store.RelevanceEntry, error) {
	out := make(map[string]store.RelevanceEntry)
	for _, chunk := range chunks(keys) {
		query := `SELECT keyword, score, rationale, updated_at FROM relevance_verdicts WHERE product = ? AND keyword IN (` + placeholders(len(chunk)) + `)`
		args := append([]any{product}, toArgs(chunk)...)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			e := store.RelevanceEntry{Product: product}
			var updated string
			if err := rows.Scan(&e.Key, &e.Score, &e.Rationale, &updated); err != nil {
				rows.Close()
				return nil, err
			}
			e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
			out[e.Key] = e
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *sqliteStore) PutRelevance(ctx context.Context, entries []store.RelevanceEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO relevance_verdicts(product, keyword, score, rationale, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(product, keyword) DO UPDATE SET
	score=excluded.score,
	rationale=excluded.rationale,
	updated_at=excluded.updated_at;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.Key == "" || e.Product == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, e.Product, e.Key, e.Score, e.Rationale, s.stamp(e.UpdatedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) stamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func chunks(keys []string) [][]string {
	var out [][]string
	for start := 0; start < len(keys); start += maxParams {
		end := start + maxParams
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}
