package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/internal/crylot/bootstrap"
	ccache "github.com/radieske/crylot/internal/crylot/cache"
	"github.com/radieske/crylot/internal/crylot/producer"
	"github.com/radieske/crylot/internal/crylot/wallet"
	"github.com/radieske/crylot/internal/fulfillment/consumer"
	sharedcache "github.com/radieske/crylot/internal/shared/cache"
	"github.com/radieske/crylot/internal/shared/config"
	"github.com/radieske/crylot/internal/shared/kafka"
	"github.com/radieske/crylot/internal/shared/logger"
	"github.com/radieske/crylot/internal/shared/metrics"
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

	if cfg.StoreDriver == "memory" {
		log.Fatal("fulfillment-worker needs a shared store; with STORE_DRIVER=memory the crylot-service fulfills in-process")
	}

	params, err := bootstrap.Params(cfg)
	if err != nil {
		log.Fatal("contract params", zap.Error(err))
	}
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka: consome randomness_fulfilled, publica bet_resolved e payout_failed (DLQ)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessFulfilled, "fulfillment-worker")
	defer reader.Close()
	resolvedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved)
	defer resolvedW.Close()
	failedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutFailed)
	defer failedW.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_messages_consumed_total", Help: "mensagens consumidas"})
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fulfillment_bets_resolved_total", Help: "apostas resolvidas"}, []string{"won"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fulfillment_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, resolved, errorsBy)

	// O worker faz o deploy sobre o mesmo store: se o estado já existe, só carrega.
	// Bets nunca passam por aqui, então o coordinator de saída fica vazio.
	contract, err := crylot.Deploy(ctx, store, params, nil, wallet.New(cfg.WalletURL),
		crylot.WithLogger(log),
		crylot.WithObserver(&ccache.Broadcaster{
			Bounds:          ccache.NewBoundsCache(rdb, 30*time.Second),
			Pub:             ccache.NewRedisPublisher(rdb),
			BoundsChannel:   cfg.RedisBoundsChannel,
			OutcomesChannel: cfg.RedisOutcomesChannel,
			Log:             log,
		}),
	)
	if err != nil {
		log.Fatal("deploy contract", zap.Error(err))
	}

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Contract:   contract,
		Results:    producer.NewResultPublisher(resolvedW, failedW),
		OnConsumed: func() { consumed.Inc() },
		OnResolved: func(won bool) { resolved.WithLabelValues(strconv.FormatBool(won)).Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(
		store.Health,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	))

	log.Info("fulfillment-worker started",
		zap.String("topic", cfg.TopicRandomnessFulfilled),
		zap.Stringer("coordinator", params.Coordinator))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
