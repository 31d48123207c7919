// Package store keeps fetched datasets in SQLite so audits still run offline.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/heartaudit/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNoSnapshot is returned when no snapshot exists for a source.
var ErrNoSnapshot = errors.New("no cached snapshot")

// Fixed-width UTC timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps SQLite access for dataset snapshots.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			dropped INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_records (
			snapshot_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			age REAL NOT NULL,
			sex REAL NOT NULL,
			cp REAL NOT NULL,
			trestbps REAL NOT NULL,
			chol REAL NOT NULL,
			fbs REAL NOT NULL,
			restecg REAL NOT NULL,
			thalach REAL NOT NULL,
			exang REAL NOT NULL,
			oldpeak REAL NOT NULL,
			slope REAL NOT NULL,
			ca REAL NOT NULL,
			thal REAL NOT NULL,
			target INTEGER,
			PRIMARY KEY (snapshot_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_source_fetched ON snapshots(source, fetched_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores records fetched from source as a new snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, source string, fetchedAt time.Time, records []model.Record, dropped int) (snap model.Snapshot, err error) {
	snap = model.Snapshot{
		ID:          uuid.NewString(),
		Source:      source,
		FetchedAt:   fetchedAt.UTC(),
		RecordCount: len(records),
		Dropped:     dropped,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, source, fetched_at, record_count, dropped) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Source, snap.FetchedAt.Format(timeLayout), snap.RecordCount, snap.Dropped,
	); err != nil {
		return model.Snapshot{}, err
	}

	if len(records) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO snapshot_records (snapshot_id, idx, age, sex, cp, trestbps, chol, fbs, restecg, thalach, exang, oldpeak, slope, ca, thal, target)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return model.Snapshot{}, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, r := range records {
			var target any
			if label, ok := r.Label(); ok {
				target = label
			}
			if _, err = stmt.ExecContext(ctx, snap.ID, i,
				r.Age, r.Sex, r.CP, r.Trestbps, r.Chol, r.Fbs, r.Restecg,
				r.Thalach, r.Exang, r.Oldpeak, r.Slope, r.CA, r.Thal, target,
			); err != nil {
				return model.Snapshot{}, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot for source and its records.
func (s *Store) LatestSnapshot(ctx context.Context, source string) (model.Snapshot, []model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, fetched_at, record_count, dropped
		 FROM snapshots
		 WHERE source = ?
		 ORDER BY fetched_at DESC, rowid DESC
		 LIMIT 1`, source)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, nil, ErrNoSnapshot
	}
	if err != nil {
		return model.Snapshot{}, nil, err
	}
	records, err := s.snapshotRecords(ctx, snap.ID)
	if err != nil {
		return model.Snapshot{}, nil, err
	}
	return snap, records, nil
}

func (s *Store) snapshotRecords(ctx context.Context, id string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT age, sex, cp, trestbps, chol, fbs, restecg, thalach, exang, oldpeak, slope, ca, thal, target
		 FROM snapshot_records
		 WHERE snapshot_id = ?
		 ORDER BY idx ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.Record
	for rows.Next() {
		var r model.Record
		var target sql.NullInt64
		if err := rows.Scan(&r.Age, &r.Sex, &r.CP, &r.Trestbps, &r.Chol, &r.Fbs, &r.Restecg,
			&r.Thalach, &r.Exang, &r.Oldpeak, &r.Slope, &r.CA, &r.Thal, &target); err != nil {
			return nil, err
		}
		if target.Valid {
			r = r.WithLabel(int(target.Int64))
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ListSnapshots returns every snapshot, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, fetched_at, record_count, dropped
		 FROM snapshots
		 ORDER BY fetched_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// PruneSnapshots deletes all but the newest keep snapshots of source and
// returns how many were removed.
func (s *Store) PruneSnapshots(ctx context.Context, source string, keep int) (removed int, err error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	stale := `SELECT id FROM snapshots
		WHERE source = ?
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT -1 OFFSET ?`
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM snapshot_records WHERE snapshot_id IN (`+stale+`)`, source, keep); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id IN (`+stale+`)`, source, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (model.Snapshot, error) {
	var snap model.Snapshot
	var fetchedAt string
	if err := row.Scan(&snap.ID, &snap.Source, &fetchedAt, &snap.RecordCount, &snap.Dropped); err != nil {
		return model.Snapshot{}, err
	}
	parsed, err := time.Parse(timeLayout, fetchedAt)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %s has bad timestamp: %w", snap.ID, err)
	}
	snap.FetchedAt = parsed
	return snap, nil
}
