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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"org_membership/internal/auth"
	"org_membership/internal/config"
	"org_membership/internal/db"
	httpserver "org_membership/internal/http"
	"org_membership/internal/identity"
	"org_membership/internal/logger"
	"org_membership/internal/metrics"
	"org_membership/internal/organisation"
	"org_membership/internal/repository"
	"org_membership/internal/seed"
)

// app holds the wired services shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	gdb     *gorm.DB // nil for the memory driver
	store   repository.Store
	metrics *metrics.Metrics
	tokens  *auth.Issuer
	ids     *identity.Service
	orgs    *organisation.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     logger.Setup(cfg.IsDevelopment()),
		metrics: metrics.New(),
		tokens:  auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		a.log.Warn().Msg("JWT_SECRET not set, using the development secret")
	}

	switch cfg.DBDriver {
	case "memory":
		a.store = repository.NewMemory()
		a.log.Info().Msg("using in-memory store")
	default:
		dialector, err := db.Dialector(cfg.DBDriver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		gdb, err := db.Connect(ctx, dialector, logger.Gorm(a.log, cfg.IsDevelopment()))
		if err != nil {
			return nil, err
		}
		a.gdb = gdb
		a.store = repository.NewGorm(gdb)
		a.log.Info().Str("driver", cfg.DBDriver).Msg("database connected")
	}

	a.ids = identity.New(a.store, auth.NewHasher(cfg.BcryptCost), a.tokens, a.metrics, a.log)
	a.orgs = organisation.New(a.store, a.metrics, a.log)
	return a, nil
}

func (a *app) migrate() error {
	if a.gdb == nil {
		return nil
	}
	if err := db.AutoMigrate(a.gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.log.Info().Msg("database migrations completed")
	return nil
}

func (a *app) close() {
	if a.gdb == nil {
		return
	}
	if err := db.Close(a.gdb); err != nil {
		a.log.Error().Err(err).Msg("close database")
	}
}

type ServeCmd struct {
	AutoMigrate     bool          `help:"Migrate the schema before serving." default:"true" negatable:"" env:"DB_AUTO_MIGRATE"`
	SeedDemo        bool          `help:"Create the demo users before serving." env:"SEED_DEMO"`
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests on shutdown." default:"10s"`
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if c.AutoMigrate {
		if err := a.migrate(); err != nil {
			return err
		}
	}

	if c.SeedDemo {
		if err := seed.FirstSetup(ctx, a.store.Users(), a.ids, a.orgs, a.log); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Identity:          a.ids,
		Organisations:     a.orgs,
		Tokens:            a.tokens,
		Users:             a.store.Users(),
		Metrics:           a.metrics,
		Log:               a.log,
		CORSOrigins:       cfg.CORSOrigins,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		AuthRateBurst:     cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, cfg *config.Config) error {
	if cfg.DBDriver == "memory" {
		return errors.New("migrate needs a SQL driver, DB_DRIVER is memory")
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return a.migrate()
}

type SeedCmd struct{}

// Run seeds a SQL database. The memory driver loses its data on exit, use
// serve --seed-demo there instead.
func (c *SeedCmd) Run(ctx context.Context, cfg *config.Config) error {
	if cfg.DBDriver == "memory" {
		return errors.New("seed needs a SQL driver, DB_DRIVER is memory")
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.migrate(); err != nil {
		return err
	}
	return seed.FirstSetup(ctx, a.store.Users(), a.ids, a.orgs, a.log)
}
