package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/influo/discovery/config"
	"github.com/influo/discovery/internal/avatar"
	"github.com/influo/discovery/internal/discovery"
	"github.com/influo/discovery/internal/store"
	"github.com/influo/discovery/provider"
	"github.com/influo/discovery/repository"
	redisrepo "github.com/influo/discovery/repository/redis_repository"
)

func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn := cfg.Databases.Postgres.DSN()
	_ = Migrate("file://migrations", dsn, "up", 0)

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	llm, err := provider.NewProvider(provider.OpenAI, cfg.Providers.OpenAI)
	if err != nil {
		return err
	}

	// Redis is optional: without it there is no trending feed and the
	// sweeper runs unlocked, but discovery itself is unaffected.
	var rdb *redis.Client
	var trending repository.Trending
	if cfg.Databases.Redis.Host != "" && cfg.Databases.Redis.Port != "" {
		rdb, err = redisrepo.Conn(ctx, cfg.Databases.Redis.Host, cfg.Databases.Redis.Port,
			cfg.Databases.Redis.Password, cfg.Databases.Redis.DB, cfg.Databases.Redis.Timeout)
		if err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Databases.Redis.Host, cfg.Databases.Redis.Port, err)
		}
		trending = redisrepo.NewRedisTrendingRepository(rdb)
	}

	cache := discovery.NewDiscoveryCache()
	engineLogger := log.New(log.Writer(), "[DISCOVERY] ", log.LstdFlags)
	engine := discovery.NewEngine(st, llm, cache, avatar.NewResolver(""), engineLogger, discovery.Options{
		BatchSize:         cfg.Discovery.BatchSize,
		ExclusionSample:   cfg.Discovery.ExclusionSample,
		PageSizeMax:       cfg.Discovery.PageSizeMax,
		PageSizeDefault:   cfg.Discovery.PageSizeDefault,
		GenerationTimeout: cfg.Discovery.GenerationTimeout,
		FallbackAfter:     cfg.Discovery.FallbackAfter,
		StagingFirst:      cfg.Discovery.StagingFirst,
	})

	api := e.Group("/api")
	ch := &CreatorsHandler{Engine: engine, Trending: trending, Logger: baseLogger}
	ch.Register(api.Group("/creators"))

	sweeper := &Sweeper{
		Cache:    cache,
		Rdb:      rdb,
		CronSpec: cfg.Discovery.SweepCron,
		BatchTTL: cfg.Discovery.BatchTTL,
		Stop:     make(chan struct{}),
	}
	sweeper.Start()

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10002"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
