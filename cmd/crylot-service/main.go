package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/internal/crylot/bootstrap"
	ccache "github.com/radieske/crylot/internal/crylot/cache"
	chttp "github.com/radieske/crylot/internal/crylot/http"
	"github.com/radieske/crylot/internal/crylot/producer"
	"github.com/radieske/crylot/internal/crylot/wallet"
	"github.com/radieske/crylot/internal/fulfillment/consumer"
	sharedcache "github.com/radieske/crylot/internal/shared/cache"
	"github.com/radieske/crylot/internal/shared/config"
	"github.com/radieske/crylot/internal/shared/kafka"
	"github.com/radieske/crylot/internal/shared/logger"
	"github.com/radieske/crylot/internal/shared/metrics"
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

	// Kafka writer (topic randomness_requested)
	requests := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessRequested)
	defer requests.Close()
	placed := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer placed.Close()
	health := kafka.NewWriter(cfg.KafkaBrokers, topics.Healthcheck)
	defer health.Close()

	// Métricas
	betsPlaced := prometheus.NewCounter(prometheus.CounterOpts{Name: "crylot_bets_placed_total", Help: "apostas admitidas"})
	boundsChanged := prometheus.NewCounter(prometheus.CounterOpts{Name: "crylot_bounds_changed_total", Help: "alterações de min/max"})
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "crylot_bets_resolved_total", Help: "apostas resolvidas"}, []string{"won"})
	prometheus.MustRegister(betsPlaced, boundsChanged, resolved)

	boundsCache := ccache.NewBoundsCache(rdb, 30*time.Second)
	broadcaster := &ccache.Broadcaster{
		Bounds:          boundsCache,
		Pub:             ccache.NewRedisPublisher(rdb),
		BoundsChannel:   cfg.RedisBoundsChannel,
		OutcomesChannel: cfg.RedisOutcomesChannel,
		Log:             log,
	}
	counters := crylot.ObserverFunc(func(_ context.Context, ev crylot.Event) {
		switch e := ev.(type) {
		case crylot.BetPlaced:
			betsPlaced.Inc()
		case crylot.BoundsChanged:
			boundsChanged.Inc()
		case crylot.BetResolved:
			resolved.WithLabelValues(strconv.FormatBool(e.Outcome.Won)).Inc()
		}
	})

	// wallet-service faz o escrow do stake e recebe os pagamentos
	wcli := wallet.New(cfg.WalletURL)

	contract, err := crylot.Deploy(ctx, store, params,
		producer.NewKafkaCoordinator(requests, log),
		wcli,
		crylot.WithLogger(log),
		crylot.WithObserver(crylot.Observers{broadcaster, counters}),
	)
	if err != nil {
		log.Fatal("deploy contract", zap.Error(err))
	}

	// Sem Postgres o estado não é compartilhado: o callback do coordinator
	// precisa ser consumido aqui mesmo.
	if cfg.StoreDriver == "memory" {
		go runInProcessFulfillment(ctx, cfg, log, contract)
	}

	api := &chttp.API{
		Contract: contract,
		Escrow:   wcli,
		Cache:    boundsCache,
		Events:   producer.NewBetPublisher(placed),
		Log:      log,
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(
		store.Health,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		kafka.HealthCheck(health),
	))

	go func() {
		log.Info("crylot-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func runInProcessFulfillment(ctx context.Context, cfg config.Config, log *zap.Logger, contract *crylot.Contract) {
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessFulfilled, "crylot-service-inproc")
	defer reader.Close()
	resolvedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved)
	defer resolvedW.Close()
	failedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutFailed)
	defer failedW.Close()

	proc := &consumer.Processor{
		Log:      log.Named("fulfillment"),
		Reader:   reader,
		Contract: contract,
		Results:  producer.NewResultPublisher(resolvedW, failedW),
	}
	log.Info("in-process fulfillment started", zap.String("topic", cfg.TopicRandomnessFulfilled))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("fulfillment stopped", zap.Error(err))
	}
}
