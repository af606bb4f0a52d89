package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	fhttp "github.com/radieske/crylot/internal/outcome-feed/http"
	"github.com/radieske/crylot/internal/outcome-feed/recent"
	"github.com/radieske/crylot/internal/outcome-feed/ws"
	"github.com/radieske/crylot/internal/shared/cache"
	"github.com/radieske/crylot/internal/shared/config"
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

	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Métricas de conexões e mensagens do WebSocket
	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_ws_connections", Help: "Clientes WebSocket conectados"})
	wsMessagesSent := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_ws_messages_sent_total", Help: "Total de mensagens WS enviadas"})
	prometheus.MustRegister(wsConnections, wsMessagesSent)

	hub := ws.NewHub(func(r *http.Request) bool { return true })
	hub.OnConnect = wsConnections.Inc
	hub.OnDisconnect = wsConnections.Dec
	hub.OnSent = wsMessagesSent.Inc

	store, err := recent.New(1024)
	if err != nil {
		log.Fatal("recent outcomes", zap.Error(err))
	}

	feed := &ws.Feed{
		Hub:             hub,
		Recent:          store,
		OutcomesChannel: cfg.RedisOutcomesChannel,
		BoundsChannel:   cfg.RedisBoundsChannel,
		Log:             log,
	}
	feed.StartRedisSubscriber(ctx, redisClient)

	api := &fhttp.API{Hub: hub, Recent: store}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	go func() {
		log.Info("outcome-feed listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("feed srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
