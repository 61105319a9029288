// Package history persists resolutions in SQLite so they can be listed and
// revisited by ID.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/star/kinematics1d/internal/kinematics"
)

const schema = `
CREATE TABLE IF NOT EXISTS resolutions (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	combination  TEXT NOT NULL,
	known_json   TEXT NOT NULL,
	result_json  TEXT NOT NULL,
	steps_json   TEXT NOT NULL,
	precision    INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions (created_at);
`

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("resolution not found")

// Record is one stored resolution.
type Record struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Inputs     kinematics.MotionState `json:"inputs"`
	Resolution kinematics.Resolution  `json:"resolution"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Store manages resolution history in SQLite.
type Store struct {
	db         *sql.DB
	maxRecords int
}

// NewStore opens a SQLite database and runs migrations. maxRecords bounds the
// table; zero or less keeps everything.
func NewStore(dbPath string, maxRecords int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases intact.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, maxRecords: maxRecords}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save stores a resolution and trims the table to maxRecords.
func (s *Store) Save(ctx context.Context, source string, inputs kinematics.MotionState, res kinematics.Resolution) (Record, error) {
	rec := Record{
		ID:         uuid.New().String(),
		Source:     source,
		Inputs:     inputs,
		Resolution: res,
		CreatedAt:  time.Now().UTC(),
	}

	knownJSON, err := json.Marshal(inputs)
	if err != nil {
		return Record{}, fmt.Errorf("marshal inputs: %w", err)
	}
	resultJSON, err := json.Marshal(res.Solution)
	if err != nil {
		return Record{}, fmt.Errorf("marshal result: %w", err)
	}
	stepsJSON, err := json.Marshal(res.Steps)
	if err != nil {
		return Record{}, fmt.Errorf("marshal steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resolutions (id, source, combination, known_json, result_json, steps_json, precision, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, source, res.Combination.String(), string(knownJSON), string(resultJSON), string(stepsJSON),
		res.Precision, rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert resolution: %w", err)
	}

	if s.maxRecords > 0 {
		if _, err := s.Prune(ctx); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Get retrieves a resolution by ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, combination, known_json, result_json, steps_json, precision, created_at
		 FROM resolutions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get resolution %s: %w", id, err)
	}
	return rec, nil
}

// List returns up to limit records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, combination, known_json, result_json, steps_json, precision, created_at
		 FROM resolutions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest maxRecords rows and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if s.maxRecords <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM resolutions WHERE id NOT IN (
			SELECT id FROM resolutions ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, s.maxRecords)
	if err != nil {
		return 0, fmt.Errorf("prune resolutions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec                              Record
		combo                            string
		knownJSON, resultJSON, stepsJSON string
		createdStr                       string
	)
	if err := sc.Scan(&rec.ID, &rec.Source, &combo, &knownJSON, &resultJSON, &stepsJSON,
		&rec.Resolution.Precision, &createdStr); err != nil {
		return Record{}, err
	}

	c, err := kinematics.ParseCombination(combo)
	if err != nil {
		return Record{}, fmt.Errorf("stored combination %q: %w", combo, err)
	}
	rec.Resolution.Combination = c
	rec.Resolution.Known = c.Known()

	if err := json.Unmarshal([]byte(knownJSON), &rec.Inputs); err != nil {
		return Record{}, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Resolution.Solution); err != nil {
		return Record{}, fmt.Errorf("unmarshal result: %w", err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &rec.Resolution.Steps); err != nil {
		return Record{}, fmt.Errorf("unmarshal steps: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return rec, nil
}
