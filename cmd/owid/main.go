package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/SWAN-community/owid/internal/app"
	"github.com/SWAN-community/owid/internal/config"
	"github.com/SWAN-community/owid/internal/email"
	httpx "github.com/SWAN-community/owid/internal/http"
	"github.com/SWAN-community/owid/internal/http/handlers"
	"github.com/SWAN-community/owid/internal/http/router"
	"github.com/SWAN-community/owid/internal/observability/logger"
	"github.com/SWAN-community/owid/internal/resolve"
	"github.com/SWAN-community/owid/internal/store"
)

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (opcional, env manda)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		_ = godotenv.Load(*flagEnvFile)
	}

	cfg, err := config.Load(*flagConfigPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "owid",
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		logger.L().Fatal("store open failed", logger.Err(err))
	}
	defer st.Close()

	var shared resolve.Shared
	if cfg.Cache.Kind == "redis" {
		shared, err = resolve.NewRedis(resolve.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			logger.L().Fatal("redis connect failed", logger.Err(err))
		}
		defer shared.Close()
	}

	resolver := resolve.NewHTTP(resolve.HTTPConfig{
		Scheme:    cfg.Resolver.Scheme,
		Timeout:   cfg.ResolverTimeout(),
		Shared:    shared,
		SharedTTL: cfg.ResolverSharedTTL(),
	})

	notifier := email.New(email.Config{
		Enabled:            cfg.Email.NotifyRotation && cfg.SMTP.Host != "",
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		From:               cfg.SMTP.From,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	})

	application := app.New(st, resolver, notifier)

	metricsHandler, err := httpx.RegisterMetrics(nil)
	if err != nil {
		logger.L().Fatal("metrics register failed", logger.Err(err))
	}

	handler := router.New(router.Config{
		Deps:           handlers.Deps{App: application},
		Store:          st,
		AdminJWTSecret: cfg.Admin.JWTSecret,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		MetricsHandler: metricsHandler,
	})

	logger.L().Info("owid service listening",
		logger.Any("addr", cfg.Server.Addr),
		logger.Driver(cfg.Storage.Driver))

	if err := httpx.Start(ctx, cfg.Server.Addr, handler); err != nil {
		logger.L().Fatal("server failed", logger.Err(err))
	}
	logger.L().Info("owid service stopped")
}

func storeConfig(cfg *config.Config) store.Config {
	var sc store.Config
	sc.Driver = cfg.Storage.Driver
	sc.DSN = cfg.Storage.DSN
	sc.File.Dir = cfg.Storage.File.Dir
	return sc
}
