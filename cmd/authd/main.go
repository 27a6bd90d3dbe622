// Command authd serves the auth API.
//
//	@title						Auth Service API
//	@version					1.0
//	@description				Credential login, refresh-token rotation and role-based access control.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/norem/auth-service/internal/api"
	"github.com/norem/auth-service/internal/api/handler"
	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
	"github.com/norem/auth-service/internal/core/service"
	"github.com/norem/auth-service/internal/infrastructure/config"
	"github.com/norem/auth-service/internal/infrastructure/db/mongo"
	"github.com/norem/auth-service/internal/infrastructure/db/postgres"
	"github.com/norem/auth-service/internal/infrastructure/db/redis"
	"github.com/norem/auth-service/internal/infrastructure/db/sqlite"
	"github.com/norem/auth-service/internal/infrastructure/hashing"
	"github.com/norem/auth-service/internal/infrastructure/oauth"
	"github.com/norem/auth-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// userStore is what every store adapter offers.
type userStore interface {
	ports.UserRepository
	handler.Pinger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "authd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "auth-service",
		Env:     cfg.Env,
	})

	users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			log.Warn().Err(err).Msg("close user store")
		}
	}()
	log.Info().Str("driver", cfg.StoreDriver).Msg("user store ready")

	issuer, err := service.NewTokenIssuer(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		SigningMethod: cfg.JWT.SigningMethod,
	})
	if err != nil {
		return err
	}

	authService, err := service.NewAuthService(users, newHasher(cfg.Hash), issuer, log)
	if err != nil {
		return err
	}

	if err := bootstrapOwner(ctx, authService, cfg.Bootstrap, log); err != nil {
		return err
	}

	resolvers, err := newResolvers(cfg.OAuth)
	if err != nil {
		return err
	}

	policies, err := api.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Dependencies{
		AuthService:   authService,
		Authenticator: service.NewAccessGuard(issuer),
		Authorizer:    service.NewRoleGuard(),
		RefreshParser: issuer,
		Resolvers:     resolvers,
		Health:        map[string]handler.Pinger{cfg.StoreDriver: users},
		Policies:      policies,
		Production:    cfg.IsProduction(),
		Log:           log,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore connects the configured user store. The returned function
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config) (userStore, func(context.Context) error, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return mongo.Open(ctx, mongo.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			Timeout:     cfg.Mongo.Timeout,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
		})

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
			Timeout:  cfg.Postgres.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(pool), func(context.Context) error {
			pool.Close()
			return nil
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLite.Path, BusyTimeout: cfg.SQLite.BusyTimeout})
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), func(context.Context) error { return db.Close() }, nil

	case config.DriverRedis:
		return redis.Open(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func newHasher(cfg config.HashConfig) ports.Hasher {
	if cfg.Algorithm == config.HashArgon2 {
		return hashing.NewArgon2Hasher(hashing.Argon2Params{
			Time:    cfg.Argon2Time,
			Memory:  cfg.Argon2Memory,
			Threads: cfg.Argon2Threads,
		})
	}
	return hashing.NewBcryptHasher(cfg.BcryptCost)
}

func newResolvers(cfg config.OAuthConfig) (*oauth.Registry, error) {
	gh, err := oauth.NewGitHubResolver(cfg.GitHubAPIURL)
	if err != nil {
		return nil, err
	}
	google := oauth.NewGoogleResolver(oauth.GoogleConfig{
		ClientIDs:    cfg.GoogleClientIDs,
		UserInfoURL:  cfg.GoogleUserInfoURL,
		TokenInfoURL: cfg.GoogleTokenInfoURL,
	})
	return oauth.NewRegistry(google, gh), nil
}

// bootstrapOwner creates the configured owner account once. An existing
// account with that email is left untouched, whatever its role.
func bootstrapOwner(ctx context.Context, svc *service.AuthService, cfg config.BootstrapConfig, log zerolog.Logger) error {
	if cfg.Email == "" {
		return nil
	}

	owner, err := svc.CreateUser(ctx, cfg.Email, cfg.Password, cfg.Name, domain.RoleOwner)
	switch {
	case errors.Is(err, domain.ErrUserExists):
		log.Debug().Str("email", cfg.Email).Msg("bootstrap owner already present")
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap owner: %w", err)
	}

	log.Info().Str("user_id", owner.ID).Str("email", owner.Email).Msg("bootstrap owner created")
	return nil
}
