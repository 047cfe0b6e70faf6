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

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/act"
	actrepo "github.com/ovaphlow/pitchfork/service-staff-records/internal/act/repo"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/auth"
	authrepo "github.com/ovaphlow/pitchfork/service-staff-records/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/config"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/institution"
	institutionrepo "github.com/ovaphlow/pitchfork/service-staff-records/internal/institution/repo"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/router"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site"
	siterepo "github.com/ovaphlow/pitchfork/service-staff-records/internal/site/repo"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/staff"
	staffrepo "github.com/ovaphlow/pitchfork/service-staff-records/internal/staff/repo"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-staff-records/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.InitLogger(utilities.LogConfig{Level: cfg.LogLevel, Dev: cfg.LogDev, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	if err := run(cfg, sugar); err != nil {
		sugar.Errorw("service stopped", "err", err)
		_ = lg.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, sugar *zap.SugaredLogger) error {
	sugar.Infow("starting service-staff-records", "port", cfg.Port, "blacklist", cfg.BlacklistStore)

	db, err := database.Open(database.Config{
		DSN:            cfg.DatabaseURL,
		MaxConns:       10,
		TimeZone:       cfg.DBTimeZone,
		ClientEncoding: cfg.DBEncoding,
	})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	bl, closeBlacklist, err := openBlacklist(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeBlacklist()
	sweeperDone := auth.StartSweeper(ctx, bl, cfg.BlacklistSweepInterval, sugar.Named("blacklist"), reg)

	tx := database.NewTxManager(db)

	users := user.NewUserService(userrepo.NewUserRepo(db), nil)
	sites := site.NewService(siterepo.NewSiteRepo(db), tx)
	employees := staff.NewService(staffrepo.NewStaffRepo(db), sites, tx)
	institutions := institution.NewService(institutionrepo.NewInstitutionRepo(db), employees, sites, tx)
	acts := act.NewService(actrepo.NewActRepo(db), tx, sugar.Named("act"), reg)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.AccessSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, bl, sugar.Named("token"), reg)
	if err != nil {
		return err
	}
	authSvc := auth.NewService(tokens, users, sugar.Named("auth"))

	handler := router.New(router.Deps{
		Logger:       sugar,
		Metrics:      reg,
		DB:           db,
		Tokens:       tokens,
		Auth:         auth.NewHandler(authSvc, sugar),
		Users:        user.NewHandler(users, sugar),
		Employees:    staff.NewHandler(employees, sugar),
		Institutions: institution.NewHandler(institutions, sugar),
		Acts:         act.NewHandler(acts, sugar),
		Sites:        site.NewHandler(sites, sugar),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	sugar.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	<-sweeperDone

	sugar.Info("goodbye")
	return nil
}

// openBlacklist picks the token blacklist backend named by the config.
func openBlacklist(ctx context.Context, cfg config.Config, db *sqlx.DB) (auth.Blacklist, func(), error) {
	switch cfg.BlacklistStore {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return auth.NewRedisBlacklist(client), func() { _ = client.Close() }, nil
	case "postgres":
		return auth.NewStoreBlacklist(authrepo.NewBlacklistRepo(db)), func() {}, nil
	default:
		return auth.NewMemoryBlacklist(), func() {}, nil
	}
}
