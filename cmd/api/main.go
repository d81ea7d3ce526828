// Command api runs the commerce platform HTTP server.
//
// @title        Velora Commerce API
// @version      1.0
// @description  Authentication, authorization, and session security for the commerce platform.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velora/commerce-api/internal/api"
	"github.com/velora/commerce-api/internal/core/service"
	"github.com/velora/commerce-api/internal/infrastructure/bus"
	"github.com/velora/commerce-api/internal/infrastructure/config"
	mongodb "github.com/velora/commerce-api/internal/infrastructure/db/mongo"
	redisdb "github.com/velora/commerce-api/internal/infrastructure/db/redis"
	"github.com/velora/commerce-api/internal/security/password"
	"github.com/velora/commerce-api/internal/security/token"
	"github.com/velora/commerce-api/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Service: "commerce-api",
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Stores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	credentials := mongodb.NewCredentialStore(db)
	roles := mongodb.NewRoleStore(db)
	if err := credentials.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("index creation failed")
	}

	// --- Cache + invalidation bus ---
	permCache := redisdb.NewCache(rdb)
	publisher := bus.NewPublisher(rdb, "")
	subscriber := bus.NewSubscriber(rdb, permCache, publisher.Origin(), 0, log)
	if err := subscriber.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("invalidation subscriber failed to start")
	}

	// --- Security primitives ---
	hasher := password.NewHasher(password.DefaultParams)
	issuer, err := token.NewIssuer(token.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer misconfigured")
	}

	// --- Services ---
	permissions := service.NewPermissionService(roles, permCache, publisher, log)
	authorizer := service.NewAuthorizerService(permissions, log)
	authService := service.NewAuthService(
		credentials,
		permissions,
		hasher,
		issuer,
		permCache,
		service.LockoutConfig{
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
			Duration:  cfg.Lockout.Duration,
		},
		cfg.Auth.RefreshTTL,
		log,
	)

	e := api.NewRouter(api.Deps{
		Mongo:       db,
		Redis:       rdb,
		AuthService: authService,
		Permissions: permissions,
		Authorizer:  authorizer,
		Issuer:      issuer,
		Log:         log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("commerce api started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
