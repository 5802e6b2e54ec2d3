package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
)

// Store persists composed verdicts keyed by upload identifier.
// Put overwrites silently. Get returns model.ErrNotFound for unknown ids.
type Store interface {
	Put(ctx context.Context, rec model.Record) error
	Get(ctx context.Context, fileID string) (model.Record, error)
	List(ctx context.Context, limit int) ([]model.Record, error) // newest first; limit <= 0 means all
	Purge(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// Open creates the store selected by cfg.Store.Driver
func Open(ctx context.Context, cfg model.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		s   Store
		err error
	)
	switch cfg.Store.Driver {
	case model.DriverMemory, "":
		s = NewMemoryStore(cfg.Retention.VerdictTTL)
	case model.DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.Store.DSN)
	case model.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.Store.DSN)
	case model.DriverRedis:
		s, err = OpenRedis(ctx, cfg.Store.RedisAddr, cfg.Retention.VerdictTTL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("result store ready", "driver", cfg.Store.Driver)
	return s, nil
}

func checkRecord(rec model.Record) error {
	if rec.FileID == "" {
		return &model.StorageError{Op: "put", Err: fmt.Errorf("record without file id")}
	}
	return nil
}

func encodeRecord(rec model.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, &model.StorageError{Op: "encode", Err: err}
	}
	return data, nil
}

func decodeRecord(data []byte) (model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Record{}, &model.StorageError{Op: "decode", Err: err}
	}
	return rec, nil
}

// sortNewestFirst orders by timestamp descending, then file id for a stable order
func sortNewestFirst(recs []model.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		}
		return recs[i].FileID < recs[j].FileID
	})
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &model.StorageError{Op: op, Err: err}
}
