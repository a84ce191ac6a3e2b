package topics

const (
	// Lotes de mudanças de odds emitidos pelo batcher
	OddsBatches = "odds_batches"

	// Canal Redis Pub/Sub para fan-out dos lotes
	OddsBatchesBroadcast = "odds_batches_broadcast"
)
