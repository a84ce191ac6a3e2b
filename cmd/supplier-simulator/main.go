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
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/shared/config"
	"github.com/radieske/live-odds-sync/internal/shared/logger"
	"github.com/radieske/live-odds-sync/internal/shared/metrics"
	"github.com/radieske/live-odds-sync/internal/supplier-simulator/feed"
	"github.com/radieske/live-odds-sync/internal/supplier-simulator/server"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := feed.NewGenerator(cfg.SimMatches, time.Now(), time.Now().UnixNano())
	g.UpdateRatio = cfg.SimUpdateRatio

	srv := server.New(g, server.NewMetrics(prometheus.DefaultRegisterer), log, cfg.SimRefuseConnects)

	// ==== MÉTRICAS (/healthz, /metrics)
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("supplier simulator (metrics) running",
		zap.String("addr", ":"+cfg.MetricsPort),
		zap.String("paths", "/healthz,/metrics"),
	)

	// Gera variações de odds e envia para todos os clientes conectados
	go srv.Run(ctx, cfg.SimTickInterval)

	// ==== PÚBLICO (REST de bulk + WS + controles de falha)
	public := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("supplier simulator (public) running",
			zap.String("addr", public.Addr),
			zap.Int("matches", cfg.SimMatches),
			zap.Duration("tick", cfg.SimTickInterval),
			zap.Bool("refuse_connects", cfg.SimRefuseConnects),
		)
		if err := public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down supplier simulator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.DropAll()
	_ = public.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
