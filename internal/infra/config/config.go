package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Session   SessionSettings   `mapstructure:"session"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Password  PasswordSettings  `mapstructure:"password"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// SessionSettings configures session cookies and short-lived grants.
type SessionSettings struct {
	Secret         string        `mapstructure:"secret"`
	CookieName     string        `mapstructure:"cookie_name"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	RememberMeTTL  time.Duration `mapstructure:"remember_me_ttl"`
	GrantTTL       time.Duration `mapstructure:"grant_ttl"`
}

// LockoutSettings configures failure thresholds and lock durations for the
// per-username and per-origin trackers.
type LockoutSettings struct {
	AccountThreshold        int           `mapstructure:"account_threshold"`
	AccountLockDuration     time.Duration `mapstructure:"account_lock_duration"`
	AccountAttemptRetention time.Duration `mapstructure:"account_attempt_retention"`
	OriginThreshold         int           `mapstructure:"origin_threshold"`
	OriginBlacklistDuration time.Duration `mapstructure:"origin_blacklist_duration"`
	PurgeInterval           time.Duration `mapstructure:"purge_interval"`
}

// PasswordSettings configures hashing cost and the composition policy.
type PasswordSettings struct {
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	MinStrengthScore int           `mapstructure:"min_strength_score"`
	ChangeCooldown   time.Duration `mapstructure:"change_cooldown"`
}

// RateLimitSettings configures the edge sliding-window throttle applied in
// front of the credential endpoints. It is independent of the lockout
// trackers, which count only failed verifications.
type RateLimitSettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	AttemptTTL     time.Duration `mapstructure:"attempt_ttl"`
	LoginLimit     int           `mapstructure:"login_limit"`
	LoginWindow    time.Duration `mapstructure:"login_window"`
	RecoveryLimit  int           `mapstructure:"recovery_limit"`
	RecoveryWindow time.Duration `mapstructure:"recovery_window"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
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
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
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
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"session.secret",
		"session.cookie_name",
		"session.cookie_secure",
		"session.default_ttl",
		"session.remember_me_ttl",
		"session.grant_ttl",
		"lockout.account_threshold",
		"lockout.account_lock_duration",
		"lockout.account_attempt_retention",
		"lockout.origin_threshold",
		"lockout.origin_blacklist_duration",
		"lockout.purge_interval",
		"password.bcrypt_cost",
		"password.min_strength_score",
		"password.change_cooldown",
		"rate_limit.enabled",
		"rate_limit.attempt_ttl",
		"rate_limit.login_limit",
		"rate_limit.login_window",
		"rate_limit.recovery_limit",
		"rate_limit.recovery_window",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.App.Env != "development" && cfg.Session.Secret == "" {
		return nil, fmt.Errorf("session.secret is required outside development")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "platform-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
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
	v.SetDefault("redis.key_prefix", "auth")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "auth_session")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.default_ttl", "12h")
	v.SetDefault("session.remember_me_ttl", "504h") // 21 days
	v.SetDefault("session.grant_ttl", "15m")

	v.SetDefault("lockout.account_threshold", 5)
	v.SetDefault("lockout.account_lock_duration", "5m")
	v.SetDefault("lockout.account_attempt_retention", "720h") // 30 days
	v.SetDefault("lockout.origin_threshold", 20)
	v.SetDefault("lockout.origin_blacklist_duration", "30m")
	v.SetDefault("lockout.purge_interval", "1h")

	v.SetDefault("password.bcrypt_cost", 10)
	v.SetDefault("password.min_strength_score", 0)
	v.SetDefault("password.change_cooldown", "24h")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.attempt_ttl", "1h")
	v.SetDefault("rate_limit.login_limit", 30)
	v.SetDefault("rate_limit.login_window", "1m")
	v.SetDefault("rate_limit.recovery_limit", 10)
	v.SetDefault("rate_limit.recovery_window", "1m")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "platform-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)
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
