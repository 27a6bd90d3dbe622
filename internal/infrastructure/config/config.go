package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

// Hash algorithms accepted by HASH_ALGORITHM.
const (
	HashBcrypt = "bcrypt"
	HashArgon2 = "argon2id"
)

type Config struct {
	Port      string `env:"PORT,       default=8080"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	// StoreDriver selects the user store: mongo, postgres, sqlite or redis.
	StoreDriver string `env:"STORE_DRIVER, default=mongo"`

	Mongo    MongoConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig

	JWT       JWTConfig
	Hash      HashConfig
	OAuth     OAuthConfig
	Bootstrap BootstrapConfig

	// PolicyFile overlays route policies on the built-in table when set.
	PolicyFile string `env:"POLICY_FILE"`
}

type MongoConfig struct {
	URI         string        `env:"MONGO_URI,           default=mongodb://localhost:27017"`
	Database    string        `env:"MONGO_DB,            default=auth_service"`
	Timeout     time.Duration `env:"MONGO_TIMEOUT,       default=10s"`
	MaxPoolSize uint64        `env:"MONGO_MAX_POOL_SIZE, default=20"`
}

type PostgresConfig struct {
	DSN      string        `env:"POSTGRES_DSN"`
	MaxConns int32         `env:"POSTGRES_MAX_CONNS, default=10"`
	Timeout  time.Duration `env:"POSTGRES_TIMEOUT,   default=5s"`
}

type SQLiteConfig struct {
	Path        string        `env:"SQLITE_PATH,         default=auth.db"`
	BusyTimeout time.Duration `env:"SQLITE_BUSY_TIMEOUT, default=5s"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,       default=0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,  default=5s"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL,     default=30s"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL,    default=168h"`
	Issuer        string        `env:"JWT_ISSUER,         default=auth-service"`
	SigningMethod string        `env:"JWT_SIGNING_METHOD, default=HS256"`
}

type HashConfig struct {
	Algorithm     string `env:"HASH_ALGORITHM,  default=bcrypt"`
	BcryptCost    int    `env:"BCRYPT_COST,     default=10"`
	Argon2Time    uint32 `env:"ARGON2_TIME,     default=3"`
	Argon2Memory  uint32 `env:"ARGON2_MEMORY,   default=65536"` // KiB
	Argon2Threads uint8  `env:"ARGON2_THREADS,  default=1"`
}

type OAuthConfig struct {
	// GoogleClientIDs lists the OAuth clients whose Google tokens are
	// accepted. Google login is refused while it is empty.
	GoogleClientIDs    []string `env:"OAUTH_GOOGLE_CLIENT_IDS"`
	GoogleUserInfoURL  string   `env:"OAUTH_GOOGLE_USERINFO_URL, default=https://openidconnect.googleapis.com/v1/userinfo"`
	GoogleTokenInfoURL string   `env:"OAUTH_GOOGLE_TOKENINFO_URL, default=https://oauth2.googleapis.com/tokeninfo"`
	// GitHubAPIURL points at a GitHub Enterprise API when set.
	GitHubAPIURL       string   `env:"OAUTH_GITHUB_API_URL"`
}

// BootstrapConfig seeds an owner account when the store has no user with
// this email. Leave Email empty to skip.
type BootstrapConfig struct {
	Email    string `env:"BOOTSTRAP_OWNER_EMAIL"`
	Password string `env:"BOOTSTRAP_OWNER_PASSWORD"`
	Name     string `env:"BOOTSTRAP_OWNER_NAME, default=Owner"`
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from an arbitrary lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverMongo, DriverRedis, DriverSQLite:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of mongo, postgres, sqlite, redis", c.StoreDriver))
	}

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive"))
	}

	switch c.Hash.Algorithm {
	case HashBcrypt, HashArgon2:
	default:
		errs = append(errs, fmt.Errorf("HASH_ALGORITHM %q is not one of bcrypt, argon2id", c.Hash.Algorithm))
	}

	if c.Bootstrap.Email != "" && len(c.Bootstrap.Password) < 8 {
		errs = append(errs, errors.New("BOOTSTRAP_OWNER_PASSWORD must be at least 8 characters"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
