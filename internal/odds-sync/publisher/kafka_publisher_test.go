package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/live-odds-sync/internal/shared/kafka"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	published := 0
	p := &KafkaPublisher{writer: w, topic: "odds_batches", log: zaptest.NewLogger(t), OnPublished: func() { published++ }}

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b := events.OddsBatch{
		BatchID:   "b-42",
		Changes:   []events.ChangeResult{{MatchID: 9}, {MatchID: 4}, {MatchID: 7}},
		Odds:      []events.Odds{{MatchID: 9, TeamAOdds: 1.5, TeamBOdds: 2.5}},
		EmittedAt: at,
	}
	require.NoError(t, p.PublishBatch(context.Background(), b))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "4", string(msg.Key))
	assert.Equal(t, "b-42", string(msg.Headers[0].Value))

	var got events.OddsBatch
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, b, got)
	assert.Equal(t, 1, published)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishBatchError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	var seen error
	p := &KafkaPublisher{writer: w, log: zaptest.NewLogger(t), OnError: func(err error) { seen = err }}

	err := p.PublishBatch(context.Background(), events.OddsBatch{BatchID: "x"})
	assert.Error(t, err)
	assert.Equal(t, w.err, seen)
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "odds_batches", nil)
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "odds_batches", nil)
	require.NoError(t, err)
	assert.Equal(t, "odds_batches", p.topic)
}

func TestBatchKeyWithoutChanges(t *testing.T) {
	assert.Equal(t, "b-1", batchKey(events.OddsBatch{BatchID: "b-1"}))
}
