// Command recalld runs the Recall round-engine server: HTTP room creation
// plus the websocket game endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/cache"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/database"
	"github.com/recallhq/recall/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not load .env file")
	}

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(lvl)
	}
	log := logrus.NewEntry(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, action history disabled")
			rdb = nil
		}
	}

	store := database.NewStore(nil, log)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pool, err := database.Connect(ctx, dsn)
		if err != nil {
			log.WithError(err).Warn("postgres unreachable, snapshot persistence disabled")
		} else {
			defer pool.Close()
			store = database.NewStore(pool, log)
		}
	}

	srv := server.New(server.Options{
		RoomConfig: config.DefaultRoomConfig(),
		Profiles:   config.LoadProfiles(os.Getenv("AI_PROFILES_PATH"), log),
		Historian:  cache.NewHistorian(rdb, log),
		Store:      store,
	}, log)
	defer srv.Shutdown()

	addr := envOr("RECALL_ADDR", ":8080")
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("recalld listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
