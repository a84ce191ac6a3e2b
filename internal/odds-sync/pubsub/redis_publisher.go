package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
	"github.com/radieske/live-odds-sync/pkg/contracts/topics"
)

// DefaultChannel é o canal Redis Pub/Sub dos lotes aplicados
const DefaultChannel = topics.OddsBatchesBroadcast

// RedisBroadcaster publica cada lote num canal Redis para consumidores externos
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

// Channel devolve o canal em uso
func (b *RedisBroadcaster) Channel() string { return b.channel }

// Publish envia um payload já serializado
func (b *RedisBroadcaster) Publish(ctx context.Context, payload []byte) error {
	return b.r.Publish(ctx, b.channel, payload).Err()
}

// PublishBatch implementa service.BatchSink
func (b *RedisBroadcaster) PublishBatch(ctx context.Context, batch events.OddsBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return b.Publish(ctx, payload)
}
