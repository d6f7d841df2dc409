package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Bot       BotConfig
	Store     StoreConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	Backup    BackupConfig
	Events    EventsConfig
	Server    ServerConfig
	App       AppConfig
}

type BotConfig struct {
	Token   string
	Debug   bool
	OwnerID int64 // operator: receives scheduled backups, may run admin commands
}

type StoreConfig struct {
	Driver          string // memory, postgres, sqlite
	DatabaseURL     string
	SQLitePath      string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration

	// StrictPersistence fails shortening when the record cannot be stored
	StrictPersistence bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type ProvidersConfig struct {
	Names          []string          `yaml:"names"`
	Order          string            `yaml:"order"`
	Timeout        time.Duration     `yaml:"timeout"`
	UserAgent      string            `yaml:"user_agent"`
	HashDomain     string            `yaml:"hash_domain"`
	FallbackDomain string            `yaml:"fallback_domain"`
	Endpoints      map[string]string `yaml:"endpoints"`
}

type BackupConfig struct {
	Enabled  bool
	Interval time.Duration
	Keep     int
	Dir      string
	S3Bucket string
	S3Prefix string
	Region   string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

type ServerConfig struct {
	Host         string
	Port         string
	APIToken     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type AppConfig struct {
	Environment        string
	LogLevel           string
	LogFile            string
	RateLimitEnabled   bool
	RateLimitPerMinute int
}

// fileConfig is the optional YAML document named by CONFIG_FILE
type fileConfig struct {
	Providers ProvidersConfig `yaml:"providers"`
}

// Load reads configuration from the environment.
// A .env file is loaded first when present; CONFIG_FILE may supply provider
// settings, and environment variables override both.
func Load() (*Config, error) {
	_ = godotenv.Load()

	providers := ProvidersConfig{
		Names:          []string{"tinyurl", "isgd", "cleanuri", "hash"},
		Order:          "fixed",
		Timeout:        10 * time.Second,
		FallbackDomain: "https://sl.local",
	}
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &providers); err != nil {
			return nil, err
		}
	}
	if v := getEnv("PROVIDERS", ""); v != "" {
		providers.Names = splitList(v)
	}
	providers.Order = strings.ToLower(getEnv("PROVIDER_ORDER", providers.Order))
	providers.Timeout = parseDuration("PROVIDER_TIMEOUT", providers.Timeout.String())
	providers.UserAgent = getEnv("PROVIDER_USER_AGENT", providers.UserAgent)
	providers.HashDomain = getEnv("HASH_DOMAIN", providers.HashDomain)
	providers.FallbackDomain = getEnv("FALLBACK_DOMAIN", providers.FallbackDomain)

	cfg := &Config{
		Bot: BotConfig{
			Token:   getEnv("BOT_TOKEN", ""),
			Debug:   parseBool("BOT_DEBUG", false),
			OwnerID: parseInt64("OWNER_ID", 0),
		},
		Store: StoreConfig{
			Driver:            strings.ToLower(getEnv("STORE_DRIVER", "memory")),
			DatabaseURL:       getEnv("DATABASE_URL", ""),
			SQLitePath:        getEnv("SQLITE_PATH", "shortlinks.db"),
			MaxConns:          parseInt("DB_MAX_CONNS", 10),
			MinConns:          parseInt("DB_MIN_CONNS", 2),
			ConnMaxLifetime:   parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
			StrictPersistence: parseBool("STRICT_PERSISTENCE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
			CacheTTL: parseDuration("REDIS_CACHE_TTL", "1h"),
		},
		Providers: providers,
		Backup: BackupConfig{
			Enabled:  parseBool("BACKUP_ENABLED", true),
			Interval: parseDuration("BACKUP_INTERVAL", "1h"),
			Keep:     parseInt("BACKUP_KEEP", 24),
			Dir:      getEnv("BACKUP_DIR", "backups"),
			S3Bucket: getEnv("BACKUP_S3_BUCKET", ""),
			S3Prefix: getEnv("BACKUP_S3_PREFIX", "shortlinks/"),
			Region:   getEnv("AWS_REGION", ""),

			S3Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			S3AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		},
		Events: EventsConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "shortlink"),
		},
		Server: ServerConfig{
			Host:         getEnv("HTTP_HOST", "127.0.0.1"),
			Port:         getEnv("HTTP_PORT", "8080"),
			APIToken:     os.Getenv("OPERATOR_API_TOKEN"),
			ReadTimeout:  parseDuration("HTTP_READ_TIMEOUT", "10s"),
			WriteTimeout: parseDuration("HTTP_WRITE_TIMEOUT", "30s"),
			IdleTimeout:  parseDuration("HTTP_IDLE_TIMEOUT", "120s"),
		},
		App: AppConfig{
			Environment:        getEnv("APP_ENV", "development"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			LogFile:            getEnv("LOG_FILE", ""),
			RateLimitEnabled:   parseBool("RATE_LIMIT_ENABLED", true),
			RateLimitPerMinute: parseInt("RATE_LIMIT_PER_MINUTE", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the application cannot start with
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Providers.Order != "fixed" && c.Providers.Order != "random" {
		errs = append(errs, fmt.Errorf("PROVIDER_ORDER must be fixed or random, got %q", c.Providers.Order))
	}
	if len(c.Providers.Names) == 0 {
		errs = append(errs, errors.New("at least one provider is required"))
	}
	if c.Backup.Enabled {
		if c.Backup.Interval <= 0 {
			errs = append(errs, errors.New("BACKUP_INTERVAL must be positive"))
		}
		if c.Backup.Keep < 1 {
			errs = append(errs, errors.New("BACKUP_KEEP must be at least 1"))
		}
	}
	if c.Server.APIToken == "" && !c.Server.IsLoopback() {
		errs = append(errs, fmt.Errorf("OPERATOR_API_TOKEN is required when HTTP_HOST is %q", c.Server.Host))
	}
	if c.App.RateLimitPerMinute < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be at least 1"))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the operator HTTP server
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// IsLoopback reports whether the server only listens on the local machine.
// An empty host binds every interface.
func (s *ServerConfig) IsLoopback() bool {
	if s.Host == "localhost" {
		return true
	}
	ip := net.ParseIP(s.Host)
	return ip != nil && ip.IsLoopback()
}

// RedisAddr returns host:port, or "" when Redis is not configured
func (c *RedisConfig) RedisAddr() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func loadFile(path string, providers *ProvidersConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Providers: *providers}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	*providers = fc.Providers
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func parseInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
