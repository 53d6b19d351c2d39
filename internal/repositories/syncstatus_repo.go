package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lastSyncKeyPrefix = "calsync:last_sync:"
	lastSyncTTL       = 30 * 24 * time.Hour // stale scopes age out on their own
)

type RedisSyncStatusRepository struct {
	client *redis.Client
}

func NewRedisSyncStatusRepository(client *redis.Client) *RedisSyncStatusRepository {
	return &RedisSyncStatusRepository{client: client}
}

func (r *RedisSyncStatusRepository) SetLastSync(ctx context.Context, therapistID uuid.UUID, completedAt time.Time) error {
	key := lastSyncKey(therapistID)
	err := r.client.Set(ctx, key, completedAt.UTC().Format(time.RFC3339Nano), lastSyncTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}
	return nil
}

// GetLastSync returns the zero time when the scope has never completed a sync.
func (r *RedisSyncStatusRepository) GetLastSync(ctx context.Context, therapistID uuid.UUID) (time.Time, error) {
	key := lastSyncKey(therapistID)

	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	completedAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last sync time: %w", err)
	}
	return completedAt, nil
}

// Helper: build Redis key for a scope's last sync timestamp
func lastSyncKey(therapistID uuid.UUID) string {
	return lastSyncKeyPrefix + therapistID.String()
}
