package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

// RedisStore keeps the name history in two families of sorted sets scored by
// first-seen time in milliseconds:
//
//	<prefix>:names:<id>          members are display names
//	<prefix>:ids:<lower(name)>   members are profile ids
type RedisStore struct {
	client *redis.Client
	opts   options
}

// NewRedis connects with the given client options.
func NewRedis(ctx context.Context, ro *redis.Options, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	s := &RedisStore{client: client, opts: newOptions("redis_store", opts)}
	s.opts.logger.Debug(ctx, "name store opened", logger.String("driver", "redis"), logger.String("addr", ro.Addr))
	return s, nil
}

func (s *RedisStore) namesKey(id string) string {
	return s.opts.keyPrefix + ":names:" + id
}

func (s *RedisStore) idsKey(name string) string {
	return s.opts.keyPrefix + ":ids:" + nameKey(name)
}

func (s *RedisStore) Record(ctx context.Context, id, name string) error {
	if err := validate(id, name); err != nil {
		return err
	}
	defer observe("record", time.Now())

	score := float64(s.opts.now().UnixMilli())
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAddNX(ctx, s.namesKey(id), redis.Z{Score: score, Member: name})
		p.ZAddNX(ctx, s.idsKey(name), redis.Z{Score: score, Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording %s as %q: %w", id, name, err)
	}
	return nil
}

func (s *RedisStore) IDsByName(ctx context.Context, name string) ([]string, error) {
	defer observe("ids_by_name", time.Now())

	ids, err := s.client.ZRange(ctx, s.idsKey(name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("ids by name %q: %w", name, err)
	}
	return ids, nil
}

func (s *RedisStore) NamesByID(ctx context.Context, id string) ([]string, error) {
	h, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return names(h), nil
}

func (s *RedisStore) History(ctx context.Context, id string) ([]model.NameRecord, error) {
	defer observe("history", time.Now())

	zs, err := s.client.ZRangeWithScores(ctx, s.namesKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", id, err)
	}
	out := make([]model.NameRecord, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		out = append(out, model.NameRecord{
			ID:         id,
			Name:       name,
			RecordedAt: time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out, nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
