package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

func TestPublishBatchReachesSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	b := NewRedisBroadcaster(client, "")
	assert.Equal(t, DefaultChannel, b.Channel())

	sub := client.Subscribe(ctx, b.Channel())
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx) // confirmação da inscrição
	require.NoError(t, err)

	batch := events.OddsBatch{
		BatchID: "b-7",
		Changes: []events.ChangeResult{{RowIndex: 2, MatchID: 7, TeamADirection: events.DirectionUp, TeamBDirection: events.DirectionNone}},
		Odds:    []events.Odds{{MatchID: 7, TeamAOdds: 2.2, TeamBOdds: 1.7}},
	}
	require.NoError(t, b.PublishBatch(ctx, batch))

	select {
	case msg := <-sub.Channel():
		var got events.OddsBatch
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "b-7", got.BatchID)
		assert.Equal(t, batch.Changes, got.Changes)
	case <-time.After(2 * time.Second):
		t.Fatal("no message on channel")
	}
}

func TestPublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisBroadcaster(client, "custom").PublishBatch(context.Background(), events.OddsBatch{})
	assert.Error(t, err)
}
