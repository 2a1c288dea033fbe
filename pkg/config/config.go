package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Protocol  ProtocolConfig
	PubSub    PubSubConfig
	Outbound  OutboundConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Protocol.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZAARNODE_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZAARNODE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAZAARNODE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZAARNODE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BAZAARNODE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"BAZAARNODE_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"BAZAARNODE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAARNODE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAARNODE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAARNODE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"BAZAARNODE_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAARNODE_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"BAZAARNODE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAARNODE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAARNODE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAARNODE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAARNODE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAZAARNODE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAZAARNODE_JWT_ISSUER" default:"bazaarnode"`
	ExpirationMinutes int    `envconfig:"BAZAARNODE_JWT_EXPIRATION_MINUTES" default:"60"`
	// BootstrapKey authorizes token minting on the local command surface.
	BootstrapKey string `envconfig:"BAZAARNODE_API_BOOTSTRAP_KEY" required:"true"`
}

// RateLimitConfig caps how often the bootstrap key may be exchanged for a
// token. A zero IP limit disables the check.
type RateLimitConfig struct {
	TokenWindow  time.Duration `envconfig:"BAZAARNODE_RATE_LIMIT_TOKEN_WINDOW" default:"1m"`
	TokenIPLimit int           `envconfig:"BAZAARNODE_RATE_LIMIT_TOKEN_IP_LIMIT" default:"10"`
}

// ProtocolConfig tunes the action-message core.
type ProtocolConfig struct {
	// NodeAddress is this node's market address, used as the bidder or seller
	// address on locally built messages.
	NodeAddress string `envconfig:"BAZAARNODE_NODE_ADDRESS" required:"true"`

	PendingRetryInterval time.Duration `envconfig:"BAZAARNODE_PENDING_RETRY_INTERVAL" default:"30s"`
	PendingMaxAge        time.Duration `envconfig:"BAZAARNODE_PENDING_MAX_AGE" default:"48h"`
	PendingBatchSize     int           `envconfig:"BAZAARNODE_PENDING_BATCH_SIZE" default:"50"`

	// DedupCacheTTL bounds the redis fast-path in front of the durable ledger.
	DedupCacheTTL time.Duration `envconfig:"BAZAARNODE_DEDUP_CACHE_TTL" default:"168h"`
}

func (p ProtocolConfig) validate() error {
	if strings.TrimSpace(p.NodeAddress) == "" {
		return fmt.Errorf("node address is required")
	}
	if p.PendingRetryInterval <= 0 {
		return fmt.Errorf("pending retry interval must be positive")
	}
	if p.PendingMaxAge <= 0 {
		return fmt.Errorf("pending max age must be positive")
	}
	return nil
}

type PubSubConfig struct {
	ProjectID string `envconfig:"BAZAARNODE_PUBSUB_PROJECT_ID"`
	// Topic carries action messages between market nodes; each node consumes
	// its own subscription filtered on the recipient attribute.
	Topic        string `envconfig:"BAZAARNODE_PUBSUB_TOPIC" default:"market-messages"`
	Subscription string `envconfig:"BAZAARNODE_PUBSUB_SUBSCRIPTION"`
}

type OutboundConfig struct {
	BatchSize    int           `envconfig:"BAZAARNODE_OUTBOUND_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"BAZAARNODE_OUTBOUND_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"BAZAARNODE_OUTBOUND_MAX_ATTEMPTS" default:"10"`
	SendTimeout  time.Duration `envconfig:"BAZAARNODE_OUTBOUND_SEND_TIMEOUT" default:"15s"`
}
