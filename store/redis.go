package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"reservation-system/models"
)

const activeResourcesKey = "active_resources"

// RedisStore persists leases, queue order and session history in Redis.
type RedisStore struct {
	Redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Redis: client}
}

func leaseKey(resourceID string) string {
	return fmt.Sprintf("lease:%s", resourceID)
}

func queueKey(resourceID string) string {
	return fmt.Sprintf("queue:%s", resourceID)
}

func historyKey(resourceID string) string {
	return fmt.Sprintf("history:%s", resourceID)
}

func (s *RedisStore) SaveLease(ctx context.Context, lease *models.Lease) error {
	data, err := json.Marshal(lease)
	if err != nil {
		return err
	}
	if err := s.Redis.Set(ctx, leaseKey(lease.ResourceID), data, 0).Err(); err != nil {
		return fmt.Errorf("save lease: %w", err)
	}
	return s.Redis.SAdd(ctx, activeResourcesKey, lease.ResourceID).Err()
}

func (s *RedisStore) DeleteLease(ctx context.Context, resourceID string) error {
	if err := s.Redis.Del(ctx, leaseKey(resourceID)).Err(); err != nil {
		return fmt.Errorf("delete lease: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveQueue(ctx context.Context, resourceID string, waiters models.QueueSnapshot) error {
	if len(waiters) == 0 {
		if err := s.Redis.Del(ctx, queueKey(resourceID)).Err(); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(waiters)
	if err != nil {
		return err
	}
	if err := s.Redis.Set(ctx, queueKey(resourceID), data, 0).Err(); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return s.Redis.SAdd(ctx, activeResourcesKey, resourceID).Err()
}

func (s *RedisStore) RecordSession(ctx context.Context, resourceID string, d time.Duration, keep int) error {
	if err := s.Redis.LPush(ctx, historyKey(resourceID), d.Nanoseconds()).Err(); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return s.Redis.LTrim(ctx, historyKey(resourceID), 0, int64(keep-1)).Err()
}

func (s *RedisStore) ResourceState(ctx context.Context, resourceID string) (*models.Lease, models.QueueSnapshot, []time.Duration, error) {
	var lease *models.Lease
	data, err := s.Redis.Get(ctx, leaseKey(resourceID)).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		return nil, nil, nil, fmt.Errorf("load lease: %w", err)
	default:
		lease = &models.Lease{}
		if err := json.Unmarshal([]byte(data), lease); err != nil {
			return nil, nil, nil, err
		}
	}

	var waiters models.QueueSnapshot
	data, err = s.Redis.Get(ctx, queueKey(resourceID)).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		return nil, nil, nil, fmt.Errorf("load queue: %w", err)
	default:
		if err := json.Unmarshal([]byte(data), &waiters); err != nil {
			return nil, nil, nil, err
		}
	}

	entries, err := s.Redis.LRange(ctx, historyKey(resourceID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, nil, nil, fmt.Errorf("load history: %w", err)
	}
	// LPUSH stores newest first; callers expect oldest first.
	var history []time.Duration
	for i := len(entries) - 1; i >= 0; i-- {
		nanos, err := strconv.ParseInt(entries[i], 10, 64)
		if err != nil {
			continue
		}
		history = append(history, time.Duration(nanos))
	}

	return lease, waiters, history, nil
}

func (s *RedisStore) ActiveResources(ctx context.Context) ([]string, error) {
	ids, err := s.Redis.SMembers(ctx, activeResourcesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("active resources: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) Deactivate(ctx context.Context, resourceID string) error {
	return s.Redis.SRem(ctx, activeResourcesKey, resourceID).Err()
}
