package party

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "ocpigw:remote_parties"

// RedisSnapshotter persists the registry as a single JSON blob in Redis.
// One key, whole-set writes: the registry is small (tens of peers) and a
// partial snapshot would be worse than none.
type RedisSnapshotter struct {
	client *redis.Client
}

// NewRedisSnapshotter wraps an existing Redis client.
func NewRedisSnapshotter(client *redis.Client) *RedisSnapshotter {
	return &RedisSnapshotter{client: client}
}

func (s *RedisSnapshotter) Save(ctx context.Context, parties []*RemoteParty) error {
	payload, err := json.Marshal(parties)
	if err != nil {
		return fmt.Errorf("marshal party snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("write party snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotter) Load(ctx context.Context) ([]*RemoteParty, error) {
	payload, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read party snapshot: %w", err)
	}
	var parties []*RemoteParty
	if err := json.Unmarshal(payload, &parties); err != nil {
		return nil, fmt.Errorf("unmarshal party snapshot: %w", err)
	}
	return parties, nil
}
