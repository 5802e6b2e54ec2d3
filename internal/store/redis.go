package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	redisRecordPrefix = "deepguard:record:"
	redisIndexKey     = "deepguard:records" // sorted set: member file id, score unix micros
)

// RedisStore keeps each record under its own key with the verdict TTL,
// plus a sorted-set index for listing and purging.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedis connects to addr, given as host:port or a redis:// URL
func OpenRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, wrap("connect", fmt.Errorf("parse redis url: %w", err))
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, wrap("connect", err)
	}
	return NewRedisStore(client, ttl), nil
}

// NewRedisStore wraps an existing client. A ttl <= 0 keeps records until purged.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, rec model.Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisRecordPrefix+rec.FileID, payload, s.ttl)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(rec.Timestamp.UnixMicro()), Member: rec.FileID})
		return nil
	})
	return wrap("put", err)
}

func (s *RedisStore) Get(ctx context.Context, fileID string) (model.Record, error) {
	data, err := s.client.Get(ctx, redisRecordPrefix+fileID).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Record{}, model.ErrNotFound
	}
	if err != nil {
		return model.Record{}, wrap("get", err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]model.Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, stop).Result()
	if err != nil {
		return nil, wrap("list", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisRecordPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrap("list", err)
	}

	recs := make([]model.Record, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key expired; drop it from the index
			expired = append(expired, ids[i])
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, redisIndexKey, expired...).Err(); err != nil {
			return nil, wrap("list", err)
		}
	}
	return recs, nil
}

func (s *RedisStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	// Exclusive upper bound
	upper := "(" + strconv.FormatInt(olderThan.UnixMicro(), 10)
	ids, err := s.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, wrap("purge", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = redisRecordPrefix + id
		members[i] = id
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, redisIndexKey, members...)
		return nil
	})
	if err != nil {
		return 0, wrap("purge", err)
	}
	return int(deleted.Val()), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
