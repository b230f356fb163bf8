package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

const (
	redisKeyPrefix   = "pji:wizard:state:"
	redisActivityKey = "pji:wizard:activity"
)

// RedisRepository stores states as redis strings with a TTL of the state
// timeout, and tracks last activity in a sorted set for purging.
type RedisRepository struct {
	client *redis.Client
	codec  *Codec
	ttl    time.Duration
	logger *logging.ChanneledLogger
}

// NewRedisRepository creates a redis-backed repository.
func NewRedisRepository(client *redis.Client, codec *Codec, ttl time.Duration, logger *logging.ChanneledLogger) *RedisRepository {
	return &RedisRepository{client: client, codec: codec, ttl: ttl, logger: logger}
}

func (r *RedisRepository) Load(ctx context.Context, key string) (*wizard.State, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, wizard.ErrStateNotFound
	}
	if err != nil {
		r.logger.Database().Error("Failed to load wizard state from redis", "error", err.Error(), "storageKey", logging.MaskID(key))
		return nil, err
	}
	return r.codec.Decode(data)
}

func (r *RedisRepository) Save(ctx context.Context, key string, s *wizard.State) error {
	data, err := r.codec.Encode(s)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+key, data, r.ttl)
	pipe.ZAdd(ctx, redisActivityKey, redis.Z{Score: float64(s.LastActivity), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Database().Error("Failed to save wizard state to redis", "error", err.Error(), "storageKey", logging.MaskID(key))
		return err
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+key)
	pipe.ZRem(ctx, redisActivityKey, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRepository) PurgeIdle(ctx context.Context, cutoff time.Time) (int, error) {
	upper := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	keys, err := r.client.ZRangeByScore(ctx, redisActivityKey, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list idle states: %w", err)
	}
	for _, key := range keys {
		if err := r.Delete(ctx, key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
