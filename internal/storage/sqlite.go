package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"gridplan/internal/model"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sqlx.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sqlx.Open("sqlite", s.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveWeightsSnapshot(ctx context.Context, id string, snap model.WeightsSnapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeWeightsSnapshot(snap)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO weight_snapshots (id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, id, snap.SchemaVersion, snap.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetWeightsSnapshot(ctx context.Context, id string) (model.WeightsSnapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.WeightsSnapshot{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM weight_snapshots WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.WeightsSnapshot{}, false, nil
		}
		return model.WeightsSnapshot{}, false, err
	}

	snap, err := DecodeWeightsSnapshot(payload)
	if err != nil {
		return model.WeightsSnapshot{}, false, fmt.Errorf("decode weights snapshot %s: %w", id, err)
	}
	return snap, true, nil
}

func (s *SQLiteStore) SaveRunRecord(ctx context.Context, record model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRunRecord(record)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, record.ID, record.CreatedAtUTC, record.SchemaVersion, record.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRunRecord(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	record, err := DecodeRunRecord(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run record %s: %w", id, err)
	}
	return record, true, nil
}

func (s *SQLiteStore) ListRunRecords(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY created_at_utc DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.RunRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		record, err := DecodeRunRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) SaveBestStrategy(ctx context.Context, runID string, result model.SimulationResult) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeResult(result)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO best_strategies (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetBestStrategy(ctx context.Context, runID string) (model.SimulationResult, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SimulationResult{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM best_strategies WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SimulationResult{}, false, nil
		}
		return model.SimulationResult{}, false, err
	}

	result, err := DecodeResult(payload)
	if err != nil {
		return model.SimulationResult{}, false, fmt.Errorf("decode best strategy %s: %w", runID, err)
	}
	return result, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS weight_snapshots (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS best_strategies (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
