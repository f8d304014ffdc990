package repository

import (
	"context"
	"time"

	"github.com/digiup/backend/internal/pkg/cache"
)

// queueRepository implements the QueueRepository interface
type queueRepository struct {
	// Operates on Redis directly; no GORM handle needed
}

// NewQueueRepository creates a new queue introspection repository instance
func NewQueueRepository() QueueRepository {
	return &queueRepository{}
}

// GetJobKeys retrieves all sync job keys from Redis
func (r *queueRepository) GetJobKeys() ([]string, error) {
	redisClient := cache.GetClient()
	ctx := context.Background()

	keys, err := redisClient.Keys(ctx, "sync_job:*").Result()
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// GetValue retrieves a value for a specific key from Redis
func (r *queueRepository) GetValue(key string) (string, error) {
	redisClient := cache.GetClient()
	ctx := context.Background()

	value, err := redisClient.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}

	return value, nil
}

// GetTTL retrieves the time-to-live for a specific key
func (r *queueRepository) GetTTL(key string) (time.Duration, error) {
	redisClient := cache.GetClient()
	ctx := context.Background()

	ttl, err := redisClient.TTL(ctx, key).Result()
	if err != nil {
		return -1, err
	}

	return ttl, nil
}

// DeleteKey deletes a specific key from Redis
func (r *queueRepository) DeleteKey(key string) error {
	redisClient := cache.GetClient()
	ctx := context.Background()

	return redisClient.Del(ctx, key).Err()
}
