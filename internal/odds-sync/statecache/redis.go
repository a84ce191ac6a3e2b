package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/odds-sync/store"
)

// DefaultKey é a chave Redis do slot de snapshot
const DefaultKey = "odds:snapshot:current"

// Redis guarda o snapshot serializado em JSON numa única chave, sem expiração.
// Sobrevive a reinícios do processo, diferente do Memory.
type Redis struct {
	Client *redis.Client
	Key    string
	log    *zap.Logger
}

// NewRedis cria o cache Redis; key vazia usa DefaultKey
func NewRedis(c *redis.Client, key string, log *zap.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{Client: c, Key: key, log: log}
}

func (r *Redis) Put(ctx context.Context, snap store.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	// 0 = sem TTL
	if err := r.Client.Set(ctx, r.Key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	r.log.Debug("snapshot cached", zap.String("key", r.Key), zap.Int("matches", snap.Count()), zap.Int("bytes", len(b)))
	return nil
}

func (r *Redis) Get(ctx context.Context) (store.Snapshot, bool, error) {
	b, err := r.Client.Get(ctx, r.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("redis get snapshot: %w", err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return store.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	r.log.Debug("snapshot retrieved", zap.String("key", r.Key), zap.Duration("age", snap.Age()))
	return snap, true, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.Client.Del(ctx, r.Key).Err(); err != nil {
		return fmt.Errorf("redis del snapshot: %w", err)
	}
	return nil
}

func (r *Redis) IsPresent(ctx context.Context) (bool, error) {
	n, err := r.Client.Exists(ctx, r.Key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists snapshot: %w", err)
	}
	return n > 0, nil
}
