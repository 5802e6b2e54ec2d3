package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ppiankov/deepguard/internal/model"
)

// PostgresStore keeps records in a PostgreSQL table with a JSONB payload
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database at dsn and applies migrations
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, wrap("connect", err)
	}

	err = migrate(ctx, "postgres", func(ctx context.Context, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
	if err != nil {
		pool.Close()
		return nil, wrap("migrate", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec model.Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO records (file_id, file_name, kind, is_deepfake, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (file_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			kind = EXCLUDED.kind,
			is_deepfake = EXCLUDED.is_deepfake,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`,
		rec.FileID, rec.FileName, string(rec.Kind), rec.Verdict.IsDeepfake, string(payload), rec.Timestamp,
	)
	return wrap("put", err)
}

func (s *PostgresStore) Get(ctx context.Context, fileID string) (model.Record, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM records WHERE file_id = $1`, fileID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Record{}, model.ErrNotFound
	}
	if err != nil {
		return model.Record{}, wrap("get", err)
	}
	return decodeRecord(payload)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.pool.Query(ctx, `SELECT payload FROM records ORDER BY created_at DESC, file_id ASC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT payload FROM records ORDER BY created_at DESC, file_id ASC`)
	}
	if err != nil {
		return nil, wrap("list", err)
	}
	defer rows.Close()

	var recs []model.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, wrap("list", err)
		}
		rec, err := decodeRecord(payload)
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

func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, wrap("purge", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
