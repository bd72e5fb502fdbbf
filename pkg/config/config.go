package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Payment      PaymentConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGROMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"AGROMARKET_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"AGROMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGROMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"AGROMARKET_DB_DSN"`

	Host     string `envconfig:"AGROMARKET_DB_HOST"`
	Port     int    `envconfig:"AGROMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"AGROMARKET_DB_USER"`
	Password string `envconfig:"AGROMARKET_DB_PASSWORD"`
	Name     string `envconfig:"AGROMARKET_DB_NAME"`
	SSLMode  string `envconfig:"AGROMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGROMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGROMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGROMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGROMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either AGROMARKET_DB_DSN or host/user/name must be provided")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"AGROMARKET_REDIS_URL"`
	DialTimeout  time.Duration `envconfig:"AGROMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGROMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGROMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis-backed session store is configured. The API
// falls back to stateless JWT validation when it is not.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"AGROMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGROMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGROMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PaymentConfig struct {
	// DeclineMethods lists payment methods the simulated authorizer rejects,
	// giving operators a deterministic rejection path.
	DeclineMethods []string `envconfig:"AGROMARKET_PAYMENT_DECLINE_METHODS"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGROMARKET_AUTO_MIGRATE" default:"false"`
}
