// Package statecache guarda no máximo um snapshot do store para warm-restart.
// Não há TTL: quem consome decide pela idade do snapshot (Snapshot.Age).
package statecache

import (
	"context"

	"github.com/radieske/live-odds-sync/internal/odds-sync/store"
)

// Cache é um slot único de snapshot, sobrescrito a cada Put
type Cache interface {
	Put(ctx context.Context, snap store.Snapshot) error
	Get(ctx context.Context) (store.Snapshot, bool, error)
	Clear(ctx context.Context) error
	IsPresent(ctx context.Context) (bool, error)
}
