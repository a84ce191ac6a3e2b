package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// Collector agrupa as métricas do odds-sync. Os métodos casam com os
// callbacks expostos pelos componentes (OnReceived, OnBatch, OnAttempt...).
type Collector struct {
	updatesReceived  prometheus.Counter
	updatesCoalesced prometheus.Counter
	batchesEmitted   prometheus.Counter
	batchRows        prometheus.Counter
	reconnects       *prometheus.CounterVec
	connectionState  prometheus.Gauge
	restoreSeconds   prometheus.Histogram
	sinkErrors       *prometheus.CounterVec
}

// NewCollector cria e registra as métricas no registerer informado
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		updatesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odds_sync_updates_received_total",
			Help: "Updates de odds recebidos do stream",
		}),
		updatesCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odds_sync_updates_coalesced_total",
			Help: "Updates descartados pelo dedup last-write-wins",
		}),
		batchesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odds_sync_batches_emitted_total",
			Help: "Lotes não vazios entregues",
		}),
		batchRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odds_sync_batch_rows_total",
			Help: "Linhas alteradas somando todos os lotes",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odds_sync_reconnect_attempts_total",
			Help: "Tentativas de reconexão por resultado",
		}, []string{"result"}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odds_sync_connection_state",
			Help: "0=disconnected 1=connecting 2=connected 3=reconnecting",
		}),
		restoreSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "odds_sync_restore_seconds",
			Help:    "Duração do restore do store a partir do snapshot",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25},
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odds_sync_sink_errors_total",
			Help: "Falhas ao publicar lotes por destino",
		}, []string{"sink"}),
	}
	reg.MustRegister(
		c.updatesReceived, c.updatesCoalesced, c.batchesEmitted, c.batchRows,
		c.reconnects, c.connectionState, c.restoreSeconds, c.sinkErrors,
	)
	return c
}

func (c *Collector) UpdateReceived()        { c.updatesReceived.Inc() }
func (c *Collector) UpdatesCoalesced(n int) { c.updatesCoalesced.Add(float64(n)) }

// BatchEmitted conta o lote e suas linhas
func (c *Collector) BatchEmitted(rows int) {
	c.batchesEmitted.Inc()
	c.batchRows.Add(float64(rows))
}

// ReconnectAttempt registra o resultado de uma tentativa
func (c *Collector) ReconnectAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.reconnects.WithLabelValues(result).Inc()
}

// ConnectionState publica o estado atual como gauge
func (c *Collector) ConnectionState(st events.ConnectionState) {
	var v float64
	switch st.Status {
	case events.StatusConnecting:
		v = 1
	case events.StatusConnected:
		v = 2
	case events.StatusReconnecting:
		v = 3
	}
	c.connectionState.Set(v)
}

func (c *Collector) Restore(elapsed time.Duration) { c.restoreSeconds.Observe(elapsed.Seconds()) }

// SinkError retorna um callback de erro rotulado com o destino
func (c *Collector) SinkError(sink string) func(error) {
	return func(error) { c.sinkErrors.WithLabelValues(sink).Inc() }
}
