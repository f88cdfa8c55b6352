// wavetipd WaveTip 小程序的服务端搜索代理。
//
// Twitch 应用密钥不能进前端包，频道搜索经由这里转发：
// 前端 GET /api/twitch/search?q=... → Helix search/channels。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wavetip/wavetip-go/client"
	"github.com/wavetip/wavetip-go/twitch"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := twitch.DefaultConfig()
	cfg.ClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.Logger = client.NewZapLogger(logger)

	searcher, err := twitch.NewClient(cfg)
	if err != nil {
		logger.Fatal("failed to initialize twitch client", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	twitch.NewHandler(searcher, cfg.Logger).Routes(r)

	addr := os.Getenv("WAVETIPD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("wavetipd listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("wavetipd stopped")
}
