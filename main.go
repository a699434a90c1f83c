package main

import (
	"crypto/tls"
	"os"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"stageboard-api/api"
	"stageboard-api/domain"
	"stageboard-api/storage"
)

func main() {
	cfg := loadConfig()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	base, err := storage.New(cfg.ConnStr, cfg.Tables, cfg.ChangeFeedQueue)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var store domain.Store = base
	if cfg.RedisConn != "" {
		rc := redis.NewClient(redisOptions(cfg.RedisConn))
		store = storage.NewCache(base, rc, cfg.BoardCacheTTL)
	}

	logger := log.New()
	changes := domain.NewChangeLog(base, base, cfg.ChangelogStrict, logger)
	svc := domain.NewService(store, changes, logger)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(echoprometheus.NewMiddleware("stageboard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, svc, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// redisOptions accepts either a redis URL or the comma-separated
// "host:port,password=...,ssl=true" form used by hosted caches.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
