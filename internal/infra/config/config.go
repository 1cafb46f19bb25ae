package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Token methods supported for handing session tokens to clients.
const (
	TokenMethodCookie = "cookie"
	TokenMethodBearer = "bearer"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Auth      AuthSettings      `mapstructure:"auth"`
}

type AppSettings struct {
	Name               string   `mapstructure:"name"`
	Env                string   `mapstructure:"env"`
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	Schema            string        `mapstructure:"schema"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	DB            int    `mapstructure:"db"`
	Password      string `mapstructure:"password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	SessionPrefix string `mapstructure:"session_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	ClientID    string   `mapstructure:"client_id"`
	Async       bool     `mapstructure:"async"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	TracingOn    bool    `mapstructure:"tracing_enabled"`
}

// AuthSettings configures authentication strategies and session issuance.
type AuthSettings struct {
	AdminStrategies     []string      `mapstructure:"admin_strategies"`
	ShopStrategies      []string      `mapstructure:"shop_strategies"`
	RequireVerification bool          `mapstructure:"require_verification"`
	SessionDuration     time.Duration `mapstructure:"session_duration"`
	SessionCacheTTL     time.Duration `mapstructure:"session_cache_ttl"`
	CacheDegradation    string        `mapstructure:"cache_degradation"`
	TokenMethod         string        `mapstructure:"token_method"`
	CookieName          string        `mapstructure:"cookie_name"`
	CookieSecure        bool          `mapstructure:"cookie_secure"`
	AuthTokenHeader     string        `mapstructure:"auth_token_header"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.schema",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.session_prefix",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.client_id",
		"kafka.async",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"telemetry.tracing_enabled",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"auth.admin_strategies",
		"auth.shop_strategies",
		"auth.require_verification",
		"auth.session_duration",
		"auth.session_cache_ttl",
		"auth.cache_degradation",
		"auth.token_method",
		"auth.cookie_name",
		"auth.cookie_secure",
		"auth.auth_token_header",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *AppConfig) Validate() error {
	if len(c.Auth.AdminStrategies) == 0 {
		return fmt.Errorf("auth.admin_strategies must not be empty")
	}
	if len(c.Auth.ShopStrategies) == 0 {
		return fmt.Errorf("auth.shop_strategies must not be empty")
	}
	switch c.Auth.TokenMethod {
	case TokenMethodCookie, TokenMethodBearer:
	default:
		return fmt.Errorf("auth.token_method must be %q or %q, got %q", TokenMethodCookie, TokenMethodBearer, c.Auth.TokenMethod)
	}
	if c.Auth.SessionDuration <= 0 {
		return fmt.Errorf("auth.session_duration must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.cors_allowed_origins", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "storefront")
	v.SetDefault("postgres.password", "storefront_password")
	v.SetDefault("postgres.database", "storefront")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.schema", "storefront")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.session_prefix", "auth:session")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "storefront")
	v.SetDefault("kafka.client_id", "storefront-auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "storefront-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)
	v.SetDefault("telemetry.tracing_enabled", false)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("auth.admin_strategies", []string{"native"})
	v.SetDefault("auth.shop_strategies", []string{"native"})
	v.SetDefault("auth.require_verification", true)
	v.SetDefault("auth.session_duration", "8760h")
	v.SetDefault("auth.session_cache_ttl", "300s")
	v.SetDefault("auth.cache_degradation", "lenient")
	v.SetDefault("auth.token_method", TokenMethodCookie)
	v.SetDefault("auth.cookie_name", "session")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.auth_token_header", "auth-token")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
