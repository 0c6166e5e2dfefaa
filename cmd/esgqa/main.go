package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/seantiz/esgqa/internal/api"
	"github.com/seantiz/esgqa/internal/auth"
	"github.com/seantiz/esgqa/internal/config"
	"github.com/seantiz/esgqa/internal/engine"
	"github.com/seantiz/esgqa/internal/ratelimit"
	"github.com/seantiz/esgqa/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	logger.Info("esgqa: starting",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"redis_addr", cfg.RedisAddr,
	)

	var s store.Store
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := store.NewSQLiteStore(cfg.SQLiteDSN)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		s = db
	default:
		s = store.NewMemoryStore()
	}
	defer s.Close()

	var limiter ratelimit.Limiter = ratelimit.NewSlidingWindow(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("failed to reach redis at %s: %v", cfg.RedisAddr, err)
		}
		limiter = ratelimit.NewRedisSlidingWindow(client, ratelimit.DefaultLimit, ratelimit.DefaultWindow, logger)
	}

	eng := engine.NewEngine(s, logger, engine.DefaultOptions())
	defer eng.Close()

	am := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL, auth.DefaultUsers())
	srv := api.NewServer(cfg.ListenAddr, eng, am, limiter, logger, api.DefaultOptions())

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
