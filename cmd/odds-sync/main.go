package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/odds-sync/batcher"
	httpapi "github.com/radieske/live-odds-sync/internal/odds-sync/http"
	"github.com/radieske/live-odds-sync/internal/odds-sync/publisher"
	"github.com/radieske/live-odds-sync/internal/odds-sync/pubsub"
	"github.com/radieske/live-odds-sync/internal/odds-sync/reconnect"
	"github.com/radieske/live-odds-sync/internal/odds-sync/service"
	"github.com/radieske/live-odds-sync/internal/odds-sync/source"
	"github.com/radieske/live-odds-sync/internal/odds-sync/statecache"
	"github.com/radieske/live-odds-sync/internal/odds-sync/store"
	"github.com/radieske/live-odds-sync/internal/odds-sync/stream"
	"github.com/radieske/live-odds-sync/internal/odds-sync/ws"
	"github.com/radieske/live-odds-sync/internal/shared/cache"
	"github.com/radieske/live-odds-sync/internal/shared/config"
	"github.com/radieske/live-odds-sync/internal/shared/db"
	"github.com/radieske/live-odds-sync/internal/shared/kafka"
	"github.com/radieske/live-odds-sync/internal/shared/logger"
	"github.com/radieske/live-odds-sync/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service",
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
		zap.String("bulk_source", cfg.BulkSource),
		zap.String("snapshot_cache", cfg.SnapshotCache),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	col := metrics.NewCollector(prometheus.DefaultRegisterer)

	st := store.New(store.WithLogger(log))
	st.OnRestore = col.Restore

	// Redis só é aberto quando o cache de snapshot ou o broadcast precisam dele
	var rdb *redis.Client
	if cfg.SnapshotCache == config.SnapshotCacheRedis || cfg.RedisPubSubChannel != "" {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	}

	var snapshots statecache.Cache
	switch cfg.SnapshotCache {
	case config.SnapshotCacheRedis:
		snapshots = statecache.NewRedis(rdb, cfg.SnapshotCacheKey, log)
	default:
		snapshots = statecache.NewMemory(log)
	}

	var bulk service.BulkSource
	switch cfg.BulkSource {
	case config.BulkSourcePostgres:
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		log.Info("postgres connected")
		bulk = source.NewPostgres(pg)
	default:
		bulk = source.NewHTTP(cfg.SupplierHTTPURL, cfg.FetchTimeout)
	}

	policy := reconnect.Config{
		InitialDelay:   cfg.ReconnectInitialDelay,
		Multiplier:     cfg.ReconnectMultiplier,
		MaxDelay:       cfg.ReconnectMaxDelay,
		MaxAttempts:    cfg.ReconnectMaxAttempts,
		AttemptTimeout: cfg.ReconnectAttemptTimeout,
		CountdownTick:  cfg.ReconnectCountdownTick,
	}
	src := stream.NewWSSource(cfg.SupplierWSURL, policy, log)
	src.Supervisor().OnAttempt = col.ReconnectAttempt
	defer src.Close()

	opts := []service.Option{service.WithLogger(log)}

	// Kafka: sink opcional dos lotes aplicados
	if brokers := kafka.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		if cfg.Env == "local" || cfg.Env == "dev" {
			tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := kafka.EnsureTopic(tctx, brokers, cfg.TopicOddsBatches); err != nil {
				log.Warn("kafka topic not ensured", zap.String("topic", cfg.TopicOddsBatches), zap.Error(err))
			}
			cancel()
		}
		pub, err := publisher.NewKafkaPublisher(brokers, cfg.TopicOddsBatches, log)
		if err != nil {
			log.Fatal("failed to create kafka publisher", zap.Error(err))
		}
		defer pub.Close()
		pub.OnError = col.SinkError("kafka")
		opts = append(opts, service.WithBatchSink(pub))
		log.Info("kafka sink ready", zap.Strings("brokers", brokers), zap.String("topic", cfg.TopicOddsBatches))
	}

	// Redis Pub/Sub: broadcast dos lotes para consumidores externos
	if rdb != nil && cfg.RedisPubSubChannel != "" {
		opts = append(opts, service.WithBatchSink(pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)))
		log.Info("redis broadcast ready", zap.String("channel", cfg.RedisPubSubChannel))
	}

	svc := service.New(service.Config{
		BatchWindow:  cfg.BatchWindow,
		FetchTimeout: cfg.FetchTimeout,
		SinkTimeout:  2 * time.Second,
	}, st, snapshots, bulk, src, opts...)
	wireBatcherMetrics(svc.Batcher(), col)

	svc.Start(ctx)

	// gauge do estado de conexão
	states, unsubStates := svc.SubscribeStates()
	defer unsubStates()
	go func() {
		col.ConnectionState(svc.ConnectionState())
		for state := range states {
			col.ConnectionState(state)
		}
	}()

	// WS para a UI
	hub := ws.NewHub(func(r *http.Request) bool { return true }, log)
	hub.Current = svc.ConnectionState
	batches, unsubBatches := svc.SubscribeOddsBatches()
	defer unsubBatches()
	hubStates, unsubHubStates := svc.SubscribeStates()
	defer unsubHubStates()
	go hub.Run(ctx, batches, hubStates)

	// carga inicial: cache primeiro, depois fornecedor. Falha não derruba o
	// processo; a UI pode chamar POST /v1/reload.
	if err := svc.LoadOrFetch(ctx); err != nil {
		log.Warn("initial load failed", zap.String("message", source.UserMessage(err)), zap.Error(err))
	}

	// sobe servidor de métricas e health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, healthCheck(rdb, svc))
	log.Info("metrics/health server starting", zap.String("addr", ":"+cfg.MetricsPort))

	api := &httpapi.API{
		Core:         svc,
		WS:           hub.HandleWS,
		SimulateLoss: src.SimulateConnectionLoss,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	// graceful shutdown: guarda o snapshot para o próximo start
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := svc.Close(shutdownCtx); err != nil {
		log.Warn("state not cached on shutdown", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("service stopped")
}

func wireBatcherMetrics(b *batcher.Batcher, col *metrics.Collector) {
	b.OnReceived = col.UpdateReceived
	b.OnCoalesced = col.UpdatesCoalesced
	b.OnBatch = col.BatchEmitted
}

// healthz: store carregado e Redis (quando em uso) respondendo
func healthCheck(rdb *redis.Client, svc *service.Service) metrics.HealthFunc {
	return func(ctx context.Context) error {
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis not healthy: %w", err)
			}
		}
		if v := svc.ViewState(); v.Status == service.ViewError {
			return fmt.Errorf("initial load failed: %s", v.Message)
		}
		return nil
	}
}
