package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rahul2762/codesync-backend/internal/models"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

const redisKeyPrefix = "exec_cache:"

// Redis stores execute responses in Redis so repeated snippets stay
// cached across restarts. Failures degrade to cache misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection. A nil Redis
// and error are returned when the server is unreachable; callers fall
// back to the memory store.
func NewRedis(addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &Redis{client: client, ttl: time.Hour}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (models.ExecuteResponse, bool) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn().Err(err).Msg("Redis cache read failed")
		}
		return models.ExecuteResponse{}, false
	}

	var resp models.ExecuteResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return models.ExecuteResponse{}, false
	}
	return resp, true
}

func (r *Redis) Set(ctx context.Context, key string, resp models.ExecuteResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache write failed")
	}
}
