package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "trekjournal"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	Store     StoreConfig
	Bucket    BucketConfig
	Redis     RedisConfig
	Media     MediaConfig
	RateLimit RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TREKJOURNAL_APP_ENV" required:"true"`
	Port         string `envconfig:"TREKJOURNAL_APP_PORT" default:"8787"`
	LogLevel     string `envconfig:"TREKJOURNAL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TREKJOURNAL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AuthConfig drives bearer-token verification against the identity provider.
type AuthConfig struct {
	Issuer            string        `envconfig:"TREKJOURNAL_AUTH_ISSUER" required:"true"`
	JWKSCacheTTL      time.Duration `envconfig:"TREKJOURNAL_AUTH_JWKS_CACHE_TTL" default:"1h"`
	AllowLegacyHS256  bool          `envconfig:"TREKJOURNAL_AUTH_ALLOW_LEGACY_HS256" default:"false"`
	JWKSFetchTimeout  time.Duration `envconfig:"TREKJOURNAL_AUTH_JWKS_FETCH_TIMEOUT" default:"10s"`
}

func (a AuthConfig) validate() error {
	if strings.TrimSpace(a.Issuer) == "" {
		return fmt.Errorf("auth issuer is required")
	}
	if a.JWKSCacheTTL <= 0 {
		return fmt.Errorf("jwks cache ttl must be positive")
	}
	return nil
}

// JWKSURL returns the well-known key set endpoint for the issuer.
func (a AuthConfig) JWKSURL() string {
	return strings.TrimRight(a.Issuer, "/") + "/.well-known/jwks.json"
}

// StoreConfig points at the relational store's REST surface. The service key
// bypasses row-level security; authorization happens in this process instead.
type StoreConfig struct {
	URL        string        `envconfig:"TREKJOURNAL_STORE_URL" required:"true"`
	ServiceKey string        `envconfig:"TREKJOURNAL_STORE_SERVICE_KEY" required:"true"`
	Timeout    time.Duration `envconfig:"TREKJOURNAL_STORE_TIMEOUT" default:"15s"`
}

type BucketConfig struct {
	Name                   string `envconfig:"TREKJOURNAL_BUCKET_NAME" required:"true"`
	CredentialsJSON        string `envconfig:"TREKJOURNAL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TREKJOURNAL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TREKJOURNAL_REDIS_URL"`
	Address      string        `envconfig:"TREKJOURNAL_REDIS_ADDR"`
	Password     string        `envconfig:"TREKJOURNAL_REDIS_PASSWORD"`
	DB           int           `envconfig:"TREKJOURNAL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TREKJOURNAL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TREKJOURNAL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TREKJOURNAL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TREKJOURNAL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TREKJOURNAL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured at all. Rate
// limiting degrades to a no-op without one.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type MediaConfig struct {
	MaxImageBytes int64 `envconfig:"TREKJOURNAL_MEDIA_MAX_IMAGE_BYTES" default:"20971520"`
	MaxVideoBytes int64 `envconfig:"TREKJOURNAL_MEDIA_MAX_VIDEO_BYTES" default:"524288000"`
}

type RateLimitConfig struct {
	UploadWindow    time.Duration `envconfig:"TREKJOURNAL_RATE_LIMIT_UPLOAD_WINDOW" default:"1m"`
	UploadUserLimit int           `envconfig:"TREKJOURNAL_RATE_LIMIT_UPLOAD_USER_LIMIT" default:"30"`
	UploadIPLimit   int           `envconfig:"TREKJOURNAL_RATE_LIMIT_UPLOAD_IP_LIMIT" default:"60"`
}
