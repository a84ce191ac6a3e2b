package publisher

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/shared/kafka"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// KafkaPublisher publica cada lote aplicado como uma mensagem JSON.
// A chave é o menor match_id do lote, mantendo lotes da mesma faixa na mesma partição.
type KafkaPublisher struct {
	writer kafka.MessageWriter
	topic  string
	log    *zap.Logger

	OnPublished func()      // métricas
	OnError     func(error) // métricas
}

// NewKafkaPublisher cria um publisher para um tópico Kafka
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: kafka.NewWriter(brokers, topic), topic: topic, log: log}, nil
}

// PublishBatch implementa service.BatchSink
func (p *KafkaPublisher) PublishBatch(ctx context.Context, b events.OddsBatch) error {
	err := kafka.WriteJSON(ctx, p.writer, batchKey(b), b,
		kafka.Header{Key: "batch_id", Value: []byte(b.BatchID)},
	)
	if err != nil {
		p.log.Error("failed to publish odds batch", zap.String("topic", p.topic), zap.Error(err))
		if p.OnError != nil {
			p.OnError(err)
		}
		return err
	}

	if p.OnPublished != nil {
		p.OnPublished()
	}
	p.log.Debug("published odds batch", zap.String("batch_id", b.BatchID), zap.Int("rows", b.Len()))
	return nil
}

// Close finaliza o writer e libera recursos associados
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func batchKey(b events.OddsBatch) string {
	if len(b.Changes) == 0 {
		return b.BatchID
	}
	lowest := b.Changes[0].MatchID
	for _, c := range b.Changes[1:] {
		if c.MatchID < lowest {
			lowest = c.MatchID
		}
	}
	return strconv.Itoa(lowest)
}
