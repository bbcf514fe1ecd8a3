package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-storefront/internal/auth"
	"github.com/0gfoundation/0g-storefront/internal/checkout"
	"github.com/0gfoundation/0g-storefront/internal/config"
	"github.com/0gfoundation/0g-storefront/internal/gateway"
	"github.com/0gfoundation/0g-storefront/internal/orders"
	"github.com/0gfoundation/0g-storefront/internal/payment"
	"github.com/0gfoundation/0g-storefront/internal/ratelimit"
	"github.com/0gfoundation/0g-storefront/internal/store"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}
	defer rdb.Close()

	// ── Database ──────────────────────────────────────────────────────────────
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	defer st.Close()

	// ── Rate limiter (always on, fails closed) ────────────────────────────────
	limiter, err := ratelimit.New(ratelimit.NewRedisStore(rdb), cfg.Limiter())
	if err != nil {
		log.Fatal("rate limiter init failed", zap.Error(err))
	}
	guard := ratelimit.NewGuard(limiter)

	// ── Payment gateway ───────────────────────────────────────────────────────
	nonces := payment.NewNonceIssuer(rdb, time.Duration(cfg.Payment.NonceTTLSec)*time.Second)
	gw := gateway.NewClient(
		cfg.Payment.APIURL,
		gateway.Credentials{APIKey: cfg.Payment.APIKey, SecretKey: cfg.Payment.SecretKey},
		payment.Signer{Scheme: cfg.Payment.AuthScheme, NonceHeader: cfg.Payment.NonceHeader},
		nonces,
	)

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMin)*time.Minute)
	if err != nil {
		log.Fatal("token issuer init failed", zap.Error(err))
	}

	// ── Order worker ──────────────────────────────────────────────────────────
	// Recovery must run before the worker starts pulling new orders.
	worker := orders.NewWorker(rdb, st, log)
	if _, err := worker.Recover(ctx); err != nil {
		log.Error("order recovery failed", zap.Error(err))
	}
	go worker.Run(ctx)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := newRouter(routerDeps{
		log:     log,
		origins: cfg.Server.AllowedOrigins,
		rdb:     rdb,
		store:   st,
		tokens:  tokens,
		auth:    auth.NewHandler(guard, st, tokens, log),
		checkout: checkout.NewHandler(
			guard, st, gw, orders.NewQueue(rdb), cfg.Payment.CallbackURL, log,
		),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	log      *zap.Logger
	origins  []string
	rdb      *redis.Client
	store    pinger
	tokens   *auth.TokenIssuer
	auth     *auth.Handler
	checkout *checkout.Handler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(d.log, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(d.log, true))
	r.Use(cors.New(corsConfig(d.origins)))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"ok": true, "redis": "ok", "database": "ok"}
		code := http.StatusOK
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			status["ok"], status["redis"], code = false, err.Error(), http.StatusServiceUnavailable
		}
		if err := d.store.Ping(ctx); err != nil {
			status["ok"], status["database"], code = false, err.Error(), http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/api")
	d.auth.Register(public)

	private := r.Group("/api", auth.Middleware(d.tokens))
	d.checkout.Register(private)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
