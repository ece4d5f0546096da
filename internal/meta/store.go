package meta

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kk-code-lab/humpty/internal/clock"
)

// ErrNotFound is returned when no catalog row matches.
var ErrNotFound = errors.New("meta: not found")

// Run kinds.
const (
	KindSplit = "split"
	KindJoin  = "join"
)

// Run is one recorded split or join.
type Run struct {
	ID             string `json:"id"`
	Seq            string `json:"seq"`
	Kind           string `json:"kind"`
	ManifestPath   string `json:"manifest_path"`
	SourceName     string `json:"source_name"`
	OutputPath     string `json:"output_path,omitempty"`
	Bytes          uint64 `json:"bytes"`
	Chunks         int    `json:"chunks"`
	SourceChecksum string `json:"source_checksum"`
	Fingerprint    string `json:"fingerprint"`
	Verified       bool   `json:"verified"`
	CreatedAt      string `json:"created_at"`
}

// Store wraps the SQLite run catalog.
type Store struct {
	db  *sql.DB
	clk clock.Clock
	hlc *clock.HLC
}

// Open opens or creates the catalog database at the given path.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, clock.RealClock{})
}

// OpenWithClock is Open with an explicit time source.
func OpenWithClock(path string, clk clock.Clock) (*Store, error) {
	if path == "" {
		return nil, errors.New("meta: db path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, clk: clk, hlc: clock.New(clk)}
	ctx := context.Background()
	if err := store.applyPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	var last sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT MAX(seq) FROM runs").Scan(&last); err != nil {
		_ = db.Close()
		return nil, err
	}
	if last.Valid {
		store.hlc.Update(last.String)
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyPragmas(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
)`); err != nil {
		return err
	}

	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}
	if version < 1 {
		if err = applyV1(ctx, tx); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(1, ?)", s.clk.Now().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyV1(ctx context.Context, tx *sql.Tx) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seq TEXT NOT NULL,
			kind TEXT NOT NULL,
			manifest_path TEXT NOT NULL,
			source_name TEXT NOT NULL,
			output_path TEXT,
			bytes INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			source_checksum TEXT,
			fingerprint TEXT,
			verified INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS runs_manifest_idx ON runs(manifest_path, kind, seq)`,
		`CREATE INDEX IF NOT EXISTS runs_seq_idx ON runs(seq)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun inserts run, filling ID, Seq and CreatedAt when empty, and
// returns the stored row.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.Kind != KindSplit && run.Kind != KindJoin {
		return Run{}, errors.New("meta: unknown run kind " + run.Kind)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Seq == "" {
		run.Seq = s.hlc.Next()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = s.clk.Now().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs(run_id, seq, kind, manifest_path, source_name, output_path, bytes, chunks, source_checksum, fingerprint, verified, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Seq, run.Kind, run.ManifestPath, run.SourceName, run.OutputPath,
		int64(run.Bytes), run.Chunks, run.SourceChecksum, run.Fingerprint, boolToInt(run.Verified), run.CreatedAt)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// LastSplit returns the most recent split recorded for manifestPath.
func (s *Store) LastSplit(ctx context.Context, manifestPath string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, seq, kind, manifest_path, source_name, output_path, bytes, chunks, source_checksum, fingerprint, verified, created_at
FROM runs WHERE manifest_path=? AND kind=?
ORDER BY seq DESC LIMIT 1`, manifestPath, KindSplit)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, seq, kind, manifest_path, source_name, output_path, bytes, chunks, source_checksum, fingerprint, verified, created_at
FROM runs ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run      Run
		output   sql.NullString
		checksum sql.NullString
		finger   sql.NullString
		bytes    int64
		verified int
	)
	if err := row.Scan(&run.ID, &run.Seq, &run.Kind, &run.ManifestPath, &run.SourceName, &output,
		&bytes, &run.Chunks, &checksum, &finger, &verified, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.OutputPath = output.String
	run.SourceChecksum = checksum.String
	run.Fingerprint = finger.String
	run.Bytes = uint64(bytes)
	run.Verified = verified != 0
	return &run, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
