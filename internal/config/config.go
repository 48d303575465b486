// Package config loads storefront-auth settings from defaults, an optional
// YAML file and STOREFRONT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STOREFRONT_"

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config is the full application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	Store         StoreConfig         `koanf:"store"`
	Database      DatabaseConfig      `koanf:"database"`
	Mongo         MongoConfig         `koanf:"mongo"`
	JWT           JWTConfig           `koanf:"jwt"`
	Password      PasswordConfig      `koanf:"password"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	CORS          CORSConfig          `koanf:"cors"`
	Admin         AdminConfig         `koanf:"admin"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig selects the credential store.
type StoreConfig struct {
	Driver  string        `koanf:"driver"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// MongoConfig contains MongoDB settings.
type MongoConfig struct {
	URI            string        `koanf:"uri"`
	Database       string        `koanf:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// JWTConfig contains session token settings.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key"`
	Issuer              string        `koanf:"issuer"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration"`
}

// PasswordConfig contains hashing settings.
type PasswordConfig struct {
	BcryptCost    int `koanf:"bcrypt_cost"`
	MaxConcurrent int `koanf:"max_concurrent"`
}

// RateLimitConfig limits register/login per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int `koanf:"requests_per_minute"`
	Burst             int `koanf:"burst"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// AdminConfig bootstraps an Admin account at startup when both fields are set.
type AdminConfig struct {
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

// NotificationsConfig contains account email settings.
type NotificationsConfig struct {
	Enabled   bool         `koanf:"enabled"`
	StoreName string       `koanf:"store_name"`
	BaseURL   string       `koanf:"base_url"`
	Email     EmailConfig  `koanf:"email"`
	Worker    WorkerConfig `koanf:"worker"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
	RequireTLS   bool   `koanf:"require_tls"`
}

// WorkerConfig contains notification worker settings.
type WorkerConfig struct {
	QueueSize         int           `koanf:"queue_size"`
	NumWorkers        int           `koanf:"num_workers"`
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	// SendTimeout bounds one delivery attempt.
	SendTimeout       time.Duration `koanf:"send_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    15 * time.Second,
			ShutdownTimeout:   20 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Driver:  StoreMemory,
			Timeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectAttempts: 5,
			ConnectTimeout:  60 * time.Second,
			AutoMigrate:     true,
		},
		Mongo: MongoConfig{
			Database:       "storefront",
			ConnectTimeout: 30 * time.Second,
		},
		JWT: JWTConfig{
			Issuer:              "storefront-auth",
			AccessTokenDuration: time.Hour,
		},
		Password: PasswordConfig{
			BcryptCost: bcrypt.DefaultCost,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             10,
		},
		Notifications: NotificationsConfig{
			StoreName: "Storefront",
			Email: EmailConfig{
				SMTPPort: 587,
			},
			Worker: WorkerConfig{
				QueueSize:         256,
				NumWorkers:        2,
				MaxAttempts:       3,
				InitialBackoff:    time.Second,
				MaxBackoff:        time.Minute,
				BackoffMultiplier: 2.0,
				SendTimeout:       30 * time.Second,
			},
		},
	}
}

// Load builds the configuration. path may be empty, in which case the
// STOREFRONT_CONFIG variable is consulted; a missing file is an error only
// when it was named explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	keys := envKeys()
	if err := k.Load(env.Provider(EnvPrefix, ".", func(name string) string {
		return keys[strings.ToLower(strings.TrimPrefix(name, EnvPrefix))]
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	} else if len(c.JWT.SecretKey) < 32 {
		errs = append(errs, errors.New("jwt.secret_key must be at least 32 bytes"))
	}
	if c.JWT.AccessTokenDuration <= 0 {
		errs = append(errs, errors.New("jwt.access_token_duration must be positive"))
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres store"))
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, postgres, mongo", c.Store.Driver))
	}

	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("password.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if m := c.Notifications.Worker.BackoffMultiplier; m != 0 && m < 1 {
		errs = append(errs, errors.New("notifications.worker.backoff_multiplier must be at least 1"))
	}

	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("admin.email and admin.password must be set together"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

// envKeys maps the env form of every config key (lowercase, "_" instead of
// ".") to its dotted path, e.g. "jwt_secret_key" -> "jwt.secret_key".
func envKeys() map[string]string {
	keys := make(map[string]string)
	collectKeys(reflect.TypeOf(Config{}), "", keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("koanf")
		if name == "" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			collectKeys(f.Type, path, keys)
			continue
		}
		keys[strings.ReplaceAll(path, ".", "_")] = path
	}
}
