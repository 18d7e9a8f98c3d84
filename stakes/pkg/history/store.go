package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS snapshot_metrics (
	date              DATE NOT NULL,
	grouped           BOOLEAN NOT NULL,
	validators        INTEGER NOT NULL,
	units             INTEGER NOT NULL,
	total_including   UBIGINT NOT NULL,
	total_excluding   UBIGINT NOT NULL,
	gini_including    DOUBLE NOT NULL,
	gini_excluding    DOUBLE NOT NULL,
	nakamoto_including VARCHAR NOT NULL,
	nakamoto_excluding VARCHAR NOT NULL,
	references_gini   VARCHAR NOT NULL,
	PRIMARY KEY (date, grouped)
)`

// Row is the persisted summary of one analyzed snapshot.
type Row struct {
	Date              time.Time
	Grouped           bool
	Validators        int
	Units             int
	TotalIncluding    uint64
	TotalExcluding    uint64
	GiniIncluding     float64
	GiniExcluding     float64
	NakamotoIncluding []engine.NakamotoPoint
	NakamotoExcluding []engine.NakamotoPoint
	References        map[engine.ReferenceKind]float64
}

// NewRow summarizes an analysis result.
func NewRow(res *engine.Result) Row {
	r := Row{
		Date:              res.Date,
		Grouped:           res.Grouped,
		Validators:        res.Validators,
		Units:             res.Units,
		TotalIncluding:    res.Including.Total,
		TotalExcluding:    res.Excluding.Total,
		GiniIncluding:     res.Including.Gini,
		GiniExcluding:     res.Excluding.Gini,
		NakamotoIncluding: res.Including.Nakamoto,
		NakamotoExcluding: res.Excluding.Nakamoto,
		References:        make(map[engine.ReferenceKind]float64, len(res.References)),
	}
	for _, ref := range res.References {
		r.References[ref.Kind] = ref.Gini
	}
	return r
}

type StoreConfig struct {
	Logger *slog.Logger
	// Path is the duckdb database file. An empty path opens an in-memory database.
	Path string
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Store keeps one metrics row per (date, grouped) pair.
type Store struct {
	log     *slog.Logger
	db      *sql.DB
	writeMu sync.Mutex
}

func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives as long as its connections; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot_metrics table: %w", err)
	}
	return &Store{log: cfg.Logger, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes rows, replacing existing rows with the same date and grouping.
func (s *Store) Upsert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO snapshot_metrics (
			date, grouped, validators, units, total_including, total_excluding,
			gini_including, gini_excluding, nakamoto_including, nakamoto_excluding, references_gini
		) VALUES (CAST(? AS DATE), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		incl, err := json.Marshal(r.NakamotoIncluding)
		if err != nil {
			return fmt.Errorf("failed to encode nakamoto: %w", err)
		}
		excl, err := json.Marshal(r.NakamotoExcluding)
		if err != nil {
			return fmt.Errorf("failed to encode nakamoto: %w", err)
		}
		refs, err := json.Marshal(r.References)
		if err != nil {
			return fmt.Errorf("failed to encode references: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.Date.Format(time.DateOnly), r.Grouped, r.Validators, r.Units,
			r.TotalIncluding, r.TotalExcluding, r.GiniIncluding, r.GiniExcluding,
			string(incl), string(excl), string(refs),
		); err != nil {
			return fmt.Errorf("failed to upsert row for %s: %w", r.Date.Format(time.DateOnly), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("history: upserted rows", "count", len(rows))
	return nil
}

// List returns the rows of one grouping mode in date order.
func (s *Store) List(ctx context.Context, grouped bool) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(date AS VARCHAR), grouped, validators, units, total_including, total_excluding,
			gini_including, gini_excluding, nakamoto_including, nakamoto_excluding, references_gini
		FROM snapshot_metrics
		WHERE grouped = ?
		ORDER BY date`, grouped)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot_metrics: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r                Row
			date             string
			incl, excl, refs string
		)
		if err := rows.Scan(
			&date, &r.Grouped, &r.Validators, &r.Units, &r.TotalIncluding, &r.TotalExcluding,
			&r.GiniIncluding, &r.GiniExcluding, &incl, &excl, &refs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if r.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("failed to parse date %q: %w", date, err)
		}
		if err := json.Unmarshal([]byte(incl), &r.NakamotoIncluding); err != nil {
			return nil, fmt.Errorf("failed to decode nakamoto: %w", err)
		}
		if err := json.Unmarshal([]byte(excl), &r.NakamotoExcluding); err != nil {
			return nil, fmt.Errorf("failed to decode nakamoto: %w", err)
		}
		if err := json.Unmarshal([]byte(refs), &r.References); err != nil {
			return nil, fmt.Errorf("failed to decode references: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
