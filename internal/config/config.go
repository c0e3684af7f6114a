// Package config loads application settings from defaults, an optional YAML file,
// APP__-prefixed environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load. Nested keys are
// separated by a double underscore: APP__SECURITY__ACCESS_TOKEN_TTL.
const EnvPrefix = "APP__"

const envNestedDelimiter = "__"

// Config is the complete application configuration.
type Config struct {
	Run         RunConfig         `koanf:"run"`
	Log         LogConfig         `koanf:"log"`
	API         APIConfig         `koanf:"api"`
	DB          DBConfig          `koanf:"db"`
	Security    SecurityConfig    `koanf:"security"`
	Redis       RedisConfig       `koanf:"redis"`
	RateLimiter RateLimiterConfig `koanf:"rate_limiter"`
	CORS        CORSConfig        `koanf:"cors"`
	S3          S3Config          `koanf:"s3"`
	Kafka       KafkaConfig       `koanf:"kafka"`
	Worker      WorkerConfig      `koanf:"worker"`
	FirstAdmin  FirstAdminConfig  `koanf:"first_admin"`
}

type RunConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Version         string        `koanf:"version"`
}

// Addr returns host:port for the HTTP listener.
func (c RunConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type APIConfig struct {
	Prefix string `koanf:"prefix"`
}

// DBConfig holds database connection parameters
type DBConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	User           string        `koanf:"user"`
	Password       string        `koanf:"password"`
	Name           string        `koanf:"name"`
	SSLMode        string        `koanf:"sslmode"`
	MaxConns       int32         `koanf:"max_conns"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// URL returns the postgres:// connection string.
func (c DBConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Name,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(int(c.MaxConns)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type SecurityConfig struct {
	PrivateKeyPath  string        `koanf:"private_key_path"`
	PublicKeyPath   string        `koanf:"public_key_path"`
	Algorithm       string        `koanf:"algorithm"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`
	BcryptCost      int           `koanf:"bcrypt_cost"`
	HashConcurrency int           `koanf:"hash_concurrency"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type RateLimiterConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
}

type S3Config struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

type WorkerConfig struct {
	CleanupSchedule string        `koanf:"cleanup_schedule"`
	UnverifiedAge   time.Duration `koanf:"unverified_age"`
}

// FirstAdminConfig seeds the initial administrator via the create-admin command.
type FirstAdminConfig struct {
	PhoneNumber string `koanf:"phone_number"`
	Password    string `koanf:"password"`
	FullName    string `koanf:"full_name"`
}

func defaults() map[string]any {
	return map[string]any{
		"run.host":             "0.0.0.0",
		"run.port":             8000,
		"run.shutdown_timeout": "10s",
		"run.version":          "dev",

		"log.level":  "info",
		"log.format": "json",

		"api.prefix": "/api/v1",

		"db.host":            "localhost",
		"db.port":            5432,
		"db.user":            "postgres",
		"db.password":        "postgres",
		"db.name":            "user_backend",
		"db.sslmode":         "disable",
		"db.max_conns":       10,
		"db.connect_retries": 5,
		"db.connect_backoff": "1s",
		"db.auto_migrate":    false,

		"security.private_key_path":  "certs/jwt-private.pem",
		"security.public_key_path":   "certs/jwt-public.pem",
		"security.algorithm":         "RS256",
		"security.access_token_ttl":  "15m",
		"security.refresh_token_ttl": "720h",
		"security.bcrypt_cost":       12,
		"security.hash_concurrency":  4,

		"redis.addr": "localhost:6379",
		"redis.db":   0,

		"rate_limiter.enabled":  true,
		"rate_limiter.requests": 5,
		"rate_limiter.window":   "60s",

		"cors.allow_origins":     []string{"*"},
		"cors.allow_methods":     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		"cors.allow_headers":     []string{"Authorization", "Content-Type", "X-Request-ID"},
		"cors.allow_credentials": false,

		"s3.enabled":  false,
		"s3.endpoint": "localhost:9000",
		"s3.bucket":   "avatars",
		"s3.region":   "us-east-1",
		"s3.use_ssl":  false,

		"kafka.enabled":  false,
		"kafka.brokers":  []string{"localhost:9092"},
		"kafka.topic":    "tasks",
		"kafka.group_id": "user-backend-worker",

		"worker.cleanup_schedule": "@daily",
		"worker.unverified_age":   "48h",
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"host":       "run.host",
	"port":       "run.port",
	"log-level":  "log.level",
	"log-format": "log.format",
	"migrate":    "db.auto_migrate",
}

// RegisterFlags adds the flags that override configuration keys to fs.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("host", "", "HTTP listen host")
	flags.Int("port", 0, "HTTP listen port")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")
	flags.Bool("migrate", false, "apply database migrations on startup")
}

// LoadOptions controls where Load reads configuration from.
type LoadOptions struct {
	// File is an optional YAML file. A missing file is an error only when set explicitly.
	File string
	// EnvFile is loaded into the process environment before reading APP__ variables.
	EnvFile string
	// Flags overrides configuration with the flags the user changed.
	Flags *pflag.FlagSet
}

// Load builds the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_ENV_FILE").With("path", opts.EnvFile).Wrap(err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS").Wrap(err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE").With("path", opts.File).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagValue), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns APP__SECURITY__ACCESS_TOKEN_TTL into security.access_token_ttl.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, envNestedDelimiter, "."))
	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

func flagValue(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok || !f.Changed {
		return "", nil
	}
	return key, f.Value.String()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(key string, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.Run.Port < 1 || c.Run.Port > 65535 {
		return invalid("run.port", "port must be between 1 and 65535, got %d", c.Run.Port)
	}
	if !strings.HasPrefix(c.API.Prefix, "/") {
		return invalid("api.prefix", "api prefix must start with /, got %q", c.API.Prefix)
	}
	switch c.Security.Algorithm {
	case "RS256", "RS384", "RS512":
	default:
		return invalid("security.algorithm", "unsupported algorithm %q", c.Security.Algorithm)
	}
	if c.Security.PrivateKeyPath == "" || c.Security.PublicKeyPath == "" {
		return invalid("security.private_key_path", "both key paths are required")
	}
	if c.Security.AccessTokenTTL <= 0 {
		return invalid("security.access_token_ttl", "access token ttl must be positive")
	}
	if c.Security.RefreshTokenTTL <= 0 {
		return invalid("security.refresh_token_ttl", "refresh token ttl must be positive")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return invalid("security.bcrypt_cost", "bcrypt cost must be between 4 and 31, got %d", c.Security.BcryptCost)
	}
	if c.RateLimiter.Enabled && (c.RateLimiter.Requests < 1 || c.RateLimiter.Window <= 0) {
		return invalid("rate_limiter", "requests and window must be positive")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return invalid("kafka", "brokers and topic are required when kafka is enabled")
	}
	if c.S3.Enabled && (c.S3.Endpoint == "" || c.S3.Bucket == "") {
		return invalid("s3", "endpoint and bucket are required when s3 is enabled")
	}
	if c.Worker.UnverifiedAge <= 0 {
		return invalid("worker.unverified_age", "unverified age must be positive")
	}
	return nil
}

// String hides secrets so the config can be logged.
func (c *Config) String() string {
	return fmt.Sprintf("run=%s api=%s db=%s@%s:%d/%s redis=%s kafka=%v s3=%v",
		c.Run.Addr(), c.API.Prefix, c.DB.User, c.DB.Host, c.DB.Port, c.DB.Name,
		c.Redis.Addr, c.Kafka.Enabled, c.S3.Enabled)
}

// DefaultFile returns path when it exists, or "".
func DefaultFile(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
