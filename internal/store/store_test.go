package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/deepguard/internal/logging"
	"github.com/ppiankov/deepguard/internal/model"
)

var base = time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)

func record(id string, offset time.Duration) model.Record {
	ts := base.Add(offset)
	return model.Record{
		FileID:   id,
		FileName: id + ".png",
		Kind:     model.KindImage,
		Verdict: model.Verdict{
			ManipulationType: model.ManipulationAuthentic,
			Confidence:       0.21,
			Details:          model.NewImageFindings(model.ImageFindings{PixelAnalysisScore: 0.4, Width: 64, Height: 48}),
			Explanation:      "Image appears authentic with no significant manipulation or AI generation detected.",
			Timestamp:        ts,
		},
		Timestamp: ts,
	}
}

// drivers returns every store the environment can provide; network drivers need env vars
func drivers(t *testing.T) map[string]func(t *testing.T) Store {
	d := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(0) },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "records.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			return s
		},
	}
	if dsn := os.Getenv("DEEPGUARD_TEST_POSTGRES_DSN"); dsn != "" {
		d["postgres"] = func(t *testing.T) Store {
			s, err := OpenPostgres(context.Background(), dsn)
			if err != nil {
				t.Fatalf("OpenPostgres: %v", err)
			}
			if _, err := s.Purge(context.Background(), time.Now().Add(24*365*time.Hour)); err != nil {
				t.Fatalf("reset: %v", err)
			}
			return s
		}
	}
	if addr := os.Getenv("DEEPGUARD_TEST_REDIS_ADDR"); addr != "" {
		d["redis"] = func(t *testing.T) Store {
			s, err := OpenRedis(context.Background(), addr, time.Hour)
			if err != nil {
				t.Fatalf("OpenRedis: %v", err)
			}
			if _, err := s.Purge(context.Background(), time.Now().Add(24*365*time.Hour)); err != nil {
				t.Fatalf("reset: %v", err)
			}
			return s
		}
	}
	return d
}

func TestStore_PutGet(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()

			want := record("abc", 0)
			if err := s.Put(ctx, want); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := s.Get(ctx, "abc")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.FileName != want.FileName || got.Kind != want.Kind {
				t.Errorf("got %+v, want %+v", got, want)
			}
			if got.Verdict.Details.Image == nil || *got.Verdict.Details.Image != *want.Verdict.Details.Image {
				t.Errorf("details not preserved: %+v", got.Verdict.Details)
			}
			if !got.Timestamp.Equal(want.Timestamp) || !got.Verdict.Timestamp.Equal(want.Timestamp) {
				t.Errorf("timestamp = %v, want %v", got.Timestamp, want.Timestamp)
			}
		})
	}
}

func TestStore_GetUnknown(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()

			_, err := s.Get(context.Background(), "missing")
			if !errors.Is(err, model.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()

			first := record("same", 0)
			second := record("same", time.Minute)
			second.FileName = "renamed.png"

			if err := s.Put(ctx, first); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, second); err != nil {
				t.Fatal(err)
			}

			got, err := s.Get(ctx, "same")
			if err != nil {
				t.Fatal(err)
			}
			if got.FileName != "renamed.png" {
				t.Errorf("expected last write to win, got %q", got.FileName)
			}

			all, err := s.List(ctx, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 1 {
				t.Errorf("expected one record after overwrite, got %d", len(all))
			}
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()

			for i, id := range []string{"old", "newest", "middle"} {
				offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
				if err := s.Put(ctx, record(id, offsets[i])); err != nil {
					t.Fatal(err)
				}
			}

			recs, err := s.List(ctx, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != 2 || recs[0].FileID != "newest" || recs[1].FileID != "middle" {
				t.Errorf("unexpected order: %+v", ids(recs))
			}

			all, err := s.List(ctx, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 3 {
				t.Errorf("expected 3 records, got %d", len(all))
			}
		})
	}
}

func TestStore_Purge(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()

			for i, id := range []string{"a", "b", "c"} {
				if err := s.Put(ctx, record(id, time.Duration(i)*time.Hour)); err != nil {
					t.Fatal(err)
				}
			}

			n, err := s.Purge(ctx, base.Add(90*time.Minute))
			if err != nil {
				t.Fatal(err)
			}
			if n != 2 {
				t.Errorf("purged %d, want 2", n)
			}
			if _, err := s.Get(ctx, "a"); !errors.Is(err, model.ErrNotFound) {
				t.Errorf("expected a to be purged, got %v", err)
			}
			if _, err := s.Get(ctx, "c"); err != nil {
				t.Errorf("expected c to survive, got %v", err)
			}
		})
	}
}

func TestStore_RejectsEmptyID(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()

			err := s.Put(context.Background(), record("", 0))
			var se *model.StorageError
			if !errors.As(err, &se) {
				t.Errorf("expected StorageError, got %v", err)
			}
		})
	}
}

func TestStore_ConcurrentPuts(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id := string(rune('a' + i))
					if err := s.Put(ctx, record(id, time.Duration(i)*time.Second)); err != nil {
						t.Errorf("Put %s: %v", id, err)
					}
				}(i)
			}
			wg.Wait()

			recs, err := s.List(ctx, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != 20 {
				t.Errorf("expected 20 records, got %d", len(recs))
			}
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()

	if err := s.Put(ctx, record("short", 0)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)

	if _, err := s.Get(ctx, "short"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected expired record to be gone, got %v", err)
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, record("kept", 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen (migrations must be idempotent): %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if _, err := reopened.Get(ctx, "kept"); err != nil {
		t.Errorf("record lost after reopen: %v", err)
	}
}

func TestOpen(t *testing.T) {
	cfg := model.DefaultConfig()
	s, err := Open(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("default driver should be memory, got %T", s)
	}

	cfg.Store.Driver = model.DriverSQLite
	cfg.Store.DSN = filepath.Join(t.TempDir(), "x.db")
	s, err = Open(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("expected sqlite store, got %T", s)
	}

	cfg.Store.Driver = "mongo"
	if _, err := Open(context.Background(), cfg, logging.Discard()); err == nil {
		t.Error("expected unknown driver to fail")
	}
}

func ids(recs []model.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.FileID
	}
	return out
}
