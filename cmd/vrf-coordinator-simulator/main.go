package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot/vrf"
	"github.com/radieske/crylot/internal/shared/config"
	"github.com/radieske/crylot/internal/shared/kafka"
	"github.com/radieske/crylot/internal/shared/logger"
	"github.com/radieske/crylot/internal/shared/metrics"
	"github.com/radieske/crylot/internal/vrf-coordinator/simulator"
	"github.com/radieske/crylot/pkg/contracts/topics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, logger.WithFile(cfg.LogFile))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.CoordinatorKey == "" {
		log.Fatal("VRF_COORDINATOR_KEY is required")
	}
	key, err := vrf.LoadKey(cfg.CoordinatorKey)
	if err != nil {
		log.Fatal("coordinator key", zap.Error(err))
	}
	signer := vrf.Address(key)
	if signer != cfg.Network.VRFCoordinator {
		// o contrato vai recusar tudo que este simulador assinar
		log.Warn("coordinator key does not match network coordinator",
			zap.Stringer("signer", signer),
			zap.Stringer("expected", cfg.Network.VRFCoordinator))
	}

	// Cria os tópicos no ambiente local (idempotente)
	tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := kafka.EnsureTopics(tctx, cfg.KafkaBrokers,
		cfg.TopicRandomnessRequested, cfg.TopicRandomnessFulfilled,
		cfg.TopicBetPlaced, cfg.TopicBetResolved, cfg.TopicPayoutFailed,
		topics.Healthcheck,
	); err != nil {
		log.Warn("ensure topics", zap.Error(err))
	}
	cancel()

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessRequested, "vrf-coordinator-simulator")
	defer reader.Close()
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessFulfilled)
	defer writer.Close()

	fulfilled := prometheus.NewCounter(prometheus.CounterOpts{Name: "vrf_sim_fulfilled_total", Help: "pedidos respondidos"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vrf_sim_rejected_total", Help: "pedidos recusados por motivo"}, []string{"reason"})
	prometheus.MustRegister(fulfilled, rejected)

	sim := &simulator.Simulator{
		Log:         log,
		Key:         key,
		KeyHash:     cfg.Network.KeyHash,
		Subs:        map[uint64]bool{cfg.Network.SubscriptionID: true},
		Reader:      reader,
		Writer:      writer,
		BlockTime:   cfg.BlockTime,
		OnFulfilled: func() { fulfilled.Inc() },
		OnRejected:  func(reason string) { rejected.WithLabelValues(reason).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	log.Info("vrf-coordinator-simulator started",
		zap.String("network", cfg.Network.Name),
		zap.Stringer("signer", signer),
		zap.Uint64("subscriptionId", cfg.Network.SubscriptionID),
		zap.Duration("blockTime", cfg.BlockTime))
	if err := sim.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("simulator stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
