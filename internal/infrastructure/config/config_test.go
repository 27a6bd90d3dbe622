package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return LoadWith(context.Background(), envconfig.MapLookuper(env))
}

func secrets() map[string]string {
	return map[string]string{
		"JWT_ACCESS_SECRET":  "access",
		"JWT_REFRESH_SECRET": "refresh",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, secrets())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" || cfg.StoreDriver != DriverMongo || cfg.Hash.Algorithm != HashBcrypt {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWT.AccessTTL != 30*time.Second || cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected TTLs: %s / %s", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}
	if cfg.JWT.SigningMethod != "HS256" || cfg.JWT.Issuer != "auth-service" {
		t.Fatalf("unexpected jwt config: %+v", cfg.JWT)
	}
	if cfg.Mongo.Database != "auth_service" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected store defaults: %+v %+v", cfg.Mongo, cfg.Redis)
	}
	if cfg.Hash.Argon2Memory != 65536 || cfg.Hash.Argon2Threads != 1 {
		t.Fatalf("unexpected argon2 defaults: %+v", cfg.Hash)
	}
	if cfg.IsProduction() {
		t.Fatal("default env should not be production")
	}
}

func TestLoad_Overrides(t *testing.T) {
	env := secrets()
	env["ENV"] = "Production"
	env["STORE_DRIVER"] = "postgres"
	env["POSTGRES_DSN"] = "postgres://auth@localhost/auth"
	env["POSTGRES_MAX_CONNS"] = "25"
	env["JWT_ACCESS_TTL"] = "15m"
	env["HASH_ALGORITHM"] = "argon2id"
	env["LOG_PRETTY"] = "true"
	env["BOOTSTRAP_OWNER_EMAIL"] = "root@example.com"
	env["BOOTSTRAP_OWNER_PASSWORD"] = "change-me-now"
	env["OAUTH_GOOGLE_CLIENT_IDS"] = "web.apps.googleusercontent.com,ios.apps.googleusercontent.com"

	cfg, err := load(t, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() || !cfg.LogPretty {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if cfg.Postgres.MaxConns != 25 || cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Postgres, cfg.JWT)
	}
	if ids := cfg.OAuth.GoogleClientIDs; len(ids) != 2 || ids[1] != "ios.apps.googleusercontent.com" {
		t.Fatalf("unexpected google client ids: %v", ids)
	}
	if cfg.Bootstrap.Name != "Owner" {
		t.Fatalf("expected default owner name, got %q", cfg.Bootstrap.Name)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secrets", map[string]string{}, "JWT_ACCESS_SECRET is required"},
		{"shared secret", map[string]string{"JWT_ACCESS_SECRET": "same", "JWT_REFRESH_SECRET": "same"}, "must differ"},
		{"unknown driver", merge(secrets(), "STORE_DRIVER", "cassandra"), "STORE_DRIVER"},
		{"postgres without dsn", merge(secrets(), "STORE_DRIVER", "postgres"), "POSTGRES_DSN"},
		{"unknown hash", merge(secrets(), "HASH_ALGORITHM", "md5"), "HASH_ALGORITHM"},
		{"negative ttl", merge(secrets(), "JWT_ACCESS_TTL", "-1s"), "must be positive"},
		{"weak bootstrap password", merge(secrets(), "BOOTSTRAP_OWNER_EMAIL", "root@example.com"), "BOOTSTRAP_OWNER_PASSWORD"},
		{"unparsable duration", merge(secrets(), "JWT_REFRESH_TTL", "soon"), "invalid duration"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, tc.env)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func merge(env map[string]string, key, value string) map[string]string {
	env[key] = value
	return env
}
