// Package store provides the SQLite-backed dispatch record store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/dispatch"
)

// SQLiteRecordStore persists dispatch records in a SQLite database. State
// transitions are applied through a conditional UPDATE with the previous
// state as precondition, inside an immediate transaction, so concurrent
// accept calls serialize on the database and exactly one wins.
type SQLiteRecordStore struct {
	db *sql.DB
}

// NewSQLiteRecordStore opens or creates the database at path and ensures the
// schema.
func NewSQLiteRecordStore(path string) (*SQLiteRecordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent accepts; reads
	// still go through the same pool.
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS dispatch_records (
        job_id TEXT PRIMARY KEY,
        state TEXT NOT NULL,
        expires_at INTEGER,
        record TEXT NOT NULL,
        updated_at INTEGER NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteRecordStore{db: db}, nil
}

// Create implements dispatch.RecordStore.
func (s *SQLiteRecordStore) Create(ctx context.Context, rec *dispatch.DispatchRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dispatch_records (job_id, state, expires_at, record, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rec.JobID, rec.State.String(), expiryUnix(rec), string(b), time.Now().Unix())
	if err != nil && isUniqueViolation(err) {
		return dispatch.ErrRecordExists
	}
	return err
}

// Get implements dispatch.RecordStore.
func (s *SQLiteRecordStore) Get(ctx context.Context, jobID string) (*dispatch.DispatchRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM dispatch_records WHERE job_id = ?`, jobID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dispatch.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec dispatch.DispatchRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("store: decode record %s: %w", jobID, err)
	}
	return &rec, nil
}

// Update implements dispatch.RecordStore. The record is re-read inside an
// immediate transaction and written back with its prior state as an UPDATE
// precondition; a zero row count means a lost race and is retried.
func (s *SQLiteRecordStore) Update(ctx context.Context, jobID string, fn func(*dispatch.DispatchRecord) bool) (*dispatch.DispatchRecord, error) {
	const maxRetries = 5
	for attempt := 0; ; attempt++ {
		rec, retry, err := s.tryUpdate(ctx, jobID, fn)
		if err != nil {
			return nil, err
		}
		if !retry {
			return rec, nil
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("store: update %s: too many conflicts", jobID)
		}
	}
}

func (s *SQLiteRecordStore) tryUpdate(ctx context.Context, jobID string, fn func(*dispatch.DispatchRecord) bool) (*dispatch.DispatchRecord, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw, prevState string
	err = tx.QueryRowContext(ctx, `SELECT record, state FROM dispatch_records WHERE job_id = ?`, jobID).Scan(&raw, &prevState)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, dispatch.ErrRecordNotFound
	}
	if err != nil {
		return nil, false, err
	}
	var rec dispatch.DispatchRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, fmt.Errorf("store: decode record %s: %w", jobID, err)
	}

	if !fn(&rec) {
		return &rec, false, nil
	}

	b, err := json.Marshal(&rec)
	if err != nil {
		return nil, false, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE dispatch_records SET state = ?, expires_at = ?, record = ?, updated_at = ? WHERE job_id = ? AND state = ?`,
		rec.State.String(), expiryUnix(&rec), string(b), time.Now().Unix(), jobID, prevState)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		// Another writer moved the state first; retry against the new row.
		return nil, true, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &rec, false, nil
}

// DueForExpiry implements dispatch.RecordStore.
func (s *SQLiteRecordStore) DueForExpiry(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id FROM dispatch_records WHERE state = ? AND expires_at > 0 AND expires_at <= ? ORDER BY job_id`,
		dispatch.StateNotified.String(), now.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var due []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		due = append(due, id)
	}
	return due, rows.Err()
}

// Close implements dispatch.RecordStore.
func (s *SQLiteRecordStore) Close() error { return s.db.Close() }

func expiryUnix(rec *dispatch.DispatchRecord) int64 {
	if round := rec.CurrentRound(); round != nil {
		return round.ExpiresAt.Unix()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// matching on it keeps the driver types out of the signature.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
