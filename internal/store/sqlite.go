package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a single SQLite database file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn and applies migrations
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrap("open", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, wrap("open", err)
	}

	err = migrate(ctx, "sqlite", func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, wrap("migrate", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec model.Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (file_id, file_name, kind, is_deepfake, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			file_name = excluded.file_name,
			kind = excluded.kind,
			is_deepfake = excluded.is_deepfake,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		rec.FileID, rec.FileName, string(rec.Kind), rec.Verdict.IsDeepfake, string(payload), rec.Timestamp.UnixMicro(),
	)
	return wrap("put", err)
}

func (s *SQLiteStore) Get(ctx context.Context, fileID string) (model.Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE file_id = ?`, fileID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, model.ErrNotFound
	}
	if err != nil {
		return model.Record{}, wrap("get", err)
	}
	return decodeRecord([]byte(payload))
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM records ORDER BY created_at DESC, file_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("list", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, wrap("list", err)
		}
		rec, err := decodeRecord([]byte(payload))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE created_at < ?`, olderThan.UnixMicro())
	if err != nil {
		return 0, wrap("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("purge", fmt.Errorf("rows affected: %w", err))
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
