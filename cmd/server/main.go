package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafecogs/backend/internal/cache"
	"cafecogs/backend/internal/catalog"
	"cafecogs/backend/internal/catalog/square"
	"cafecogs/backend/internal/config"
	"cafecogs/backend/internal/httpapi"
	"cafecogs/backend/internal/lock"
	"cafecogs/backend/internal/logger"
	"cafecogs/backend/internal/service"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/store/memory"
	pgstore "cafecogs/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	log := logger.WithModule("main")

	if err := validateSecurityConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid security configuration")
	}
	if cfg.ManagerPIN == "" {
		log.Warn("MANAGER_PIN is not set; period close is disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("apply schema")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info("repository: in-memory")
	}

	var (
		reportCache cache.ReportCache = cache.NoopReportCache{}
		locker      lock.Locker       = lock.NewLocalLocker()
	)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisReportCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, using noop cache and local locks")
			_ = client.Close()
		} else {
			reportCache = redisCache
			locker = lock.NewRedisLocker(client)
			closers = append(closers, client.Close)
			log.Info("cache and locks: redis")
		}
	} else {
		log.Info("cache: noop, locks: local")
	}

	provider, err := newProvider(cfg)
	if err != nil {
		log.WithError(err).Fatal("configure catalog provider")
	}

	svc := service.New(repo, service.Options{
		Provider: provider,
		Cache:    reportCache,
		Locker:   locker,
		CacheTTL: time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
		LockTTL:  time.Duration(cfg.CloseLockTTLSeconds) * time.Second,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Period close and xlsx export can take a while on large periods.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("cafe COGS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Error("close error")
		}
	}

	log.Info("server stopped")
}

// newProvider talks to Square when an access token is configured and falls
// back to the built-in demo catalog otherwise.
func newProvider(cfg config.Config) (catalog.Provider, error) {
	if cfg.SquareAccessToken == "" {
		logger.WithModule("main").Info("catalog provider: static demo catalog")
		return catalog.NewStatic(catalog.DemoCatalog()), nil
	}
	client, err := square.New(square.Config{
		BaseURL:     cfg.SquareBaseURL,
		AccessToken: cfg.SquareAccessToken,
		LocationID:  cfg.SquareLocationID,
		Version:     cfg.SquareVersion,
	})
	if err != nil {
		return nil, err
	}
	logger.WithModule("main").Info("catalog provider: square")
	return client, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.ManagerPIN == "" {
		return nil
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects common, repeated and sequential PINs.
func validatePINStrength(pin string) error {
	switch pin {
	case "121212", "112233", "123123", "696969", "102030":
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
