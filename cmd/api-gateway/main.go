package main

import (
	"context"
	_ "embed"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/shared/callerauth"
	"github.com/radieske/crylot/internal/shared/config"
	"github.com/radieske/crylot/internal/shared/logger"
	"github.com/radieske/crylot/internal/shared/metrics"
)

//go:embed openapi-gateway.yaml
var openapiSpec []byte

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid upstream url %q", to)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// newRouter monta as rotas do gateway:
//
//	/api/crylot/* -> crylot-service
//	/api/wallet/* -> wallet-service
//	/api/feed/*   -> outcome-feed-service (inclui o upgrade do WebSocket)
//
// X-Caller-Address só chega aos upstreams quando vem de uma assinatura válida.
func newRouter(cfg config.Config, log *zap.Logger) (http.Handler, error) {
	crylot, err := rp(cfg.CrylotURL)
	if err != nil {
		return nil, err
	}
	wallet, err := rp(cfg.WalletURL)
	if err != nil {
		return nil, err
	}
	feed, err := rp(cfg.FeedURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/crylot/", http.StripPrefix("/api/crylot", crylot))
	mux.Handle("/api/wallet/", http.StripPrefix("/api/wallet", wallet))
	mux.Handle("/api/feed/", http.StripPrefix("/api/feed", feed))

	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapiSpec)
	})

	auth := callerauth.Middleware{Log: log}
	return withCORS(auth.Wrap(mux)), nil
}

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

	h, err := newRouter(cfg, log)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	go func() {
		log.Info("api-gateway listening", zap.String("addr", srv.Addr),
			zap.String("crylot", cfg.CrylotURL), zap.String("wallet", cfg.WalletURL), zap.String("feed", cfg.FeedURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+
			callerauth.AddressHeader+", "+callerauth.SignatureHeader+", "+callerauth.TimestampHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
