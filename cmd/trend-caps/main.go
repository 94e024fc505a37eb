package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/Emmannue01/trend-caps/internal/cart"
	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/checkout"
	"github.com/Emmannue01/trend-caps/internal/config"
	"github.com/Emmannue01/trend-caps/internal/coupon"
	"github.com/Emmannue01/trend-caps/internal/db"
	"github.com/Emmannue01/trend-caps/internal/events"
	httpapi "github.com/Emmannue01/trend-caps/internal/http"
	"github.com/Emmannue01/trend-caps/internal/identity"
	"github.com/Emmannue01/trend-caps/internal/order"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "trend-caps").Logger()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, log); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	products := catalog.NewPostgresRepository(pool)
	coupons := coupon.NewPostgresRepository(pool)
	orders := order.NewPostgresRepository(pool)
	carts := cart.NewPostgresRepository(pool)
	sessions := cart.NewSessions(carts, cart.NewRedisCache(rdb))
	go sessions.Sweep(ctx, cfg.SessionMaxIdle, cfg.SessionMaxIdle)

	var pub checkout.Publisher
	if cfg.PublishEvents {
		conn := events.MustDial(cfg.AMQPURL)
		defer conn.Close()
		p, err := events.NewPublisher(conn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open publisher channel")
		}
		defer p.Close()
		pub = p
	}

	committer := checkout.NewCommitter(pool, orders, products, carts, coupons, pub, log)

	h := httpapi.NewHandler(products, products, coupons, orders, sessions, committer, cfg.RequestTimeout, log)
	router := httpapi.NewRouter(h, identity.Middleware(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
