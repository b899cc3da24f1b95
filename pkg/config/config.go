package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Signing      SigningConfig
	Booking      BookingConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Signing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DEALDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"DEALDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEALDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEALDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DEALDESK_DB_DSN"`
	Driver string `envconfig:"DEALDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DEALDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"DEALDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DEALDESK_DB_USER"`
	LegacyPassword string `envconfig:"DEALDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"DEALDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"DEALDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEALDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEALDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEALDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEALDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DEALDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEALDESK_REDIS_ADDR"`
	Password     string        `envconfig:"DEALDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEALDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEALDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEALDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEALDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEALDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEALDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SigningConfig carries the secret used to MAC confirmation batons.
// There is deliberately no default: a missing secret is a startup failure,
// never a runtime fallback.
type SigningConfig struct {
	Secret    string `envconfig:"DEALDESK_SIGNING_SECRET" required:"true"`
	MinLength int    `envconfig:"DEALDESK_SIGNING_SECRET_MIN_LENGTH" default:"32"`
}

func (s SigningConfig) validate() error {
	if len(strings.TrimSpace(s.Secret)) < s.MinLength {
		return fmt.Errorf("%s must be at least %d characters", EnvSigningSecret, s.MinLength)
	}
	return nil
}

type BookingConfig struct {
	DefaultWindowLead     time.Duration `envconfig:"DEALDESK_BOOKING_WINDOW_LEAD" default:"15m"`
	DefaultWindowDuration time.Duration `envconfig:"DEALDESK_BOOKING_WINDOW_DURATION" default:"1h"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"DEALDESK_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DEALDESK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
