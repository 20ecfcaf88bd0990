// Package redis persists POS cart snapshots in Redis so open carts survive a
// server restart and can be picked up by any replica.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"

	"github.com/xenking/inventrak/internal/domain/pos"
)

const keyPrefix = "inventrak:cart:"

// NewClient connects to Redis. url may be a redis:// URL or a bare
// host:port address.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{
			Addr:         url,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

var _ pos.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore implements pos.SnapshotStore. Each session is one key
// holding the JSON snapshot, refreshed with a TTL on every save.
type SnapshotStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSnapshotStore returns a store writing through client. A zero ttl keeps
// snapshots until they are deleted.
func NewSnapshotStore(client redis.Cmdable, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// Key returns the Redis key for a session.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Save implements pos.SnapshotStore.
func (s *SnapshotStore) Save(ctx context.Context, sessionID string, snap pos.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := s.client.Set(ctx, Key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", sessionID, err)
	}
	return nil
}

// Load implements pos.SnapshotStore.
func (s *SnapshotStore) Load(ctx context.Context, sessionID string) (*pos.Snapshot, error) {
	data, err := s.client.Get(ctx, Key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pos.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis GET %s: %w", sessionID, err)
	}

	var snap pos.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot %s: %w", sessionID, err)
	}
	return &snap, nil
}

// Delete implements pos.SnapshotStore.
func (s *SnapshotStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", sessionID, err)
	}
	return nil
}
