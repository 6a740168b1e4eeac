package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Push    PushConfig
	Session SessionConfig
	Inbox   InboxConfig
	Prefs   PrefsConfig
	Redis   RedisConfig
	CORS    CORSConfig
	Gateway GatewayConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Push.ensureEndpoint(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HELMDECK_APP_ENV" required:"true"`
	Port         string `envconfig:"HELMDECK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HELMDECK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HELMDECK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type PushConfig struct {
	Endpoint         string        `envconfig:"HELMDECK_PUSH_ENDPOINT" required:"true"`
	RetryInterval    time.Duration `envconfig:"HELMDECK_PUSH_RETRY_INTERVAL" default:"5s"`
	HandshakeTimeout time.Duration `envconfig:"HELMDECK_PUSH_HANDSHAKE_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `envconfig:"HELMDECK_PUSH_WRITE_TIMEOUT" default:"5s"`
	ReadLimitBytes   int64         `envconfig:"HELMDECK_PUSH_READ_LIMIT_BYTES" default:"1048576"`
}

// IsRedis reports whether the endpoint selects the pub/sub transport.
func (p PushConfig) IsRedis() bool {
	u, err := url.Parse(p.Endpoint)
	if err != nil {
		return false
	}
	return u.Scheme == "redis" || u.Scheme == "rediss"
}

type SessionConfig struct {
	UserID          string `envconfig:"HELMDECK_SESSION_USER_ID" required:"true"`
	SessionID       string `envconfig:"HELMDECK_SESSION_ID"`
	Secret          string `envconfig:"HELMDECK_SESSION_SECRET" required:"true"`
	Issuer          string `envconfig:"HELMDECK_SESSION_ISSUER" default:"helmdeck"`
	TokenTTLMinutes int    `envconfig:"HELMDECK_SESSION_TOKEN_TTL_MINUTES" default:"60"`
}

// TokenTTL returns the session token TTL configured in minutes.
func (s SessionConfig) TokenTTL() time.Duration {
	if s.TokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(s.TokenTTLMinutes) * time.Minute
}

type InboxConfig struct {
	Capacity      int           `envconfig:"HELMDECK_INBOX_CAPACITY" default:"50"`
	ExpireTTL     time.Duration `envconfig:"HELMDECK_INBOX_EXPIRE_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"HELMDECK_INBOX_SWEEP_INTERVAL" default:"1m"`
}

type PrefsConfig struct {
	BaseURL        string        `envconfig:"HELMDECK_PREFS_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"HELMDECK_PREFS_REQUEST_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HELMDECK_REDIS_URL"`
	Password     string        `envconfig:"HELMDECK_REDIS_PASSWORD"`
	DB           int           `envconfig:"HELMDECK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HELMDECK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HELMDECK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HELMDECK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HELMDECK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HELMDECK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"HELMDECK_CORS_ALLOWED_ORIGINS" default:"*"`
	MaxAgeSeconds  int      `envconfig:"HELMDECK_CORS_MAX_AGE_SECONDS" default:"300"`
}

type GatewayConfig struct {
	Port        string `envconfig:"HELMDECK_GATEWAY_PORT" default:"8091"`
	InjectToken string `envconfig:"HELMDECK_GATEWAY_INJECT_TOKEN"`
}

func (p *PushConfig) ensureEndpoint() error {
	u, err := url.Parse(p.Endpoint)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", EnvPushEndpoint, err)
	}

	for _, scheme := range pushEndpointSchemes {
		if u.Scheme == scheme {
			if u.Host == "" {
				return fmt.Errorf("%s is missing a host", EnvPushEndpoint)
			}
			return nil
		}
	}

	return fmt.Errorf("%s scheme %q is not one of %s",
		EnvPushEndpoint, u.Scheme, strings.Join(pushEndpointSchemes, ", "))
}
