// Package config loads the service settings with viper.
//
// Sources, highest priority first:
//  1. Environment variables with the INV_ prefix, dots replaced by
//     underscores (INV_DATABASE_PASSWORD sets database.password).
//  2. config.toml in the working directory or /app.
//  3. The defaults table below.
//
// Every key must appear in the defaults table, even with a zero value,
// or viper will not pick its environment variable up during Unmarshal.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	VAT       VATConfig       `mapstructure:"vat"`
	Invoicing InvoicingConfig `mapstructure:"invoicing"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Documents DocumentsConfig `mapstructure:"documents"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// LogConfig selects the zap level, encoder (json, console) and sink
// (stdout, stderr or a file path).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// AutoMigrate applies the embedded migrations on server start
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig points at the shared claim and plan caches. When Enabled is
// false both live in process memory.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`

	// Requests per second and burst per seller, or per client IP on public
	// routes. A zero rate disables the limiter.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`

	// AdminTokenHash is the bcrypt hash of the admin token. Empty leaves
	// the admin routes unmounted.
	AdminTokenHash string `mapstructure:"admin_token_hash"`
}

// SchedulerConfig sizes the background validation queue. A zero
// StaleSweepInterval disables the periodic sweep.
type SchedulerConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Workers            int           `mapstructure:"workers"`
	QueueSize          int           `mapstructure:"queue_size"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	StaleSweepInterval time.Duration `mapstructure:"stale_sweep_interval"`
	StaleSweepBatch    int           `mapstructure:"stale_sweep_batch"`
}

// TelemetryConfig drives the OTLP exporters and the Pyroscope profiler.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`

	ProfilingEnabled  bool   `mapstructure:"profiling_enabled"`
	PyroscopeAddress  string `mapstructure:"pyroscope_address"`
	PyroscopeUser     string `mapstructure:"pyroscope_user"`
	PyroscopePassword string `mapstructure:"pyroscope_password"`
	// cpu, alloc_space, inuse_space, goroutines, mutex_count, block_count
	ProfileTypes []string `mapstructure:"profile_types"`
}

type VATConfig struct {
	EUMembers       []string      `mapstructure:"eu_members"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	EnqueueThrottle time.Duration `mapstructure:"enqueue_throttle"`
	Provider        string        `mapstructure:"provider"` // fake, vies
	VIESBaseURL     string        `mapstructure:"vies_base_url"`
	VIESTimeout     time.Duration `mapstructure:"vies_timeout"`
	VIESRateLimit   float64       `mapstructure:"vies_rate_limit"` // requests per second
	VIESBurst       int           `mapstructure:"vies_burst"`
}

type InvoicingConfig struct {
	DefaultPrefix     string `mapstructure:"default_prefix"`
	AllocationRetries int    `mapstructure:"allocation_retries"`
}

// AuthConfig signs seller session tokens. An empty JWTSecret keeps the
// X-Seller-ID header as the seller identification.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// DocumentsConfig covers PDF printing and the S3 archive. An empty
// ChromeURL launches a local browser.
type DocumentsConfig struct {
	PDFEnabled    bool          `mapstructure:"pdf_enabled"`
	ChromeURL     string        `mapstructure:"chrome_url"`
	NoSandbox     bool          `mapstructure:"no_sandbox"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`

	Storage      string `mapstructure:"storage"` // none, s3
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// DefaultEUMembers is the member-state list used when none is configured.
var DefaultEUMembers = []string{
	"AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "ES", "FI", "FR", "GR", "HR", "HU",
	"IE", "IT", "LT", "LU", "LV", "MT", "NL", "PL", "PT", "RO", "SE", "SI", "SK",
}

var defaults = map[string]any{
	"app.name": "invoicing",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "invoicing",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  time.Hour,
	"database.conn_max_idle_time": 30 * time.Minute,
	"database.auto_migrate":       false,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":          15 * time.Second,
	"http.write_timeout":         15 * time.Second,
	"http.idle_timeout":          time.Minute,
	"http.max_header_bytes":      1 << 20,
	"http.max_body_size":         2 << 20,
	"http.trusted_proxies":       []string{},
	"http.cors_origins":          []string{},
	"http.rate_limit_per_second": 0.0,
	"http.rate_limit_burst":      20,
	"http.admin_token_hash":      "",

	"scheduler.enabled":              true,
	"scheduler.workers":              4,
	"scheduler.queue_size":           1000,
	"scheduler.job_timeout":          30 * time.Second,
	"scheduler.retry_attempts":       3,
	"scheduler.retry_delay":          time.Minute,
	"scheduler.stale_sweep_interval": time.Duration(0),
	"scheduler.stale_sweep_batch":    200,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "invoicing",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.logs_enabled":            false,
	"telemetry.profiling_enabled":       false,
	"telemetry.pyroscope_address":       "",
	"telemetry.pyroscope_user":          "",
	"telemetry.pyroscope_password":      "",
	"telemetry.profile_types":           []string{"cpu", "alloc_space", "inuse_space", "goroutines"},

	"vat.eu_members":       DefaultEUMembers,
	"vat.stale_after":      30 * 24 * time.Hour,
	"vat.enqueue_throttle": 10 * time.Minute,
	"vat.provider":         "fake",
	"vat.vies_base_url":    "https://ec.europa.eu/taxation_customs/vies/rest-api",
	"vat.vies_timeout":     10 * time.Second,
	"vat.vies_rate_limit":  2.0,
	"vat.vies_burst":       4,

	"invoicing.default_prefix":     "INV",
	"invoicing.allocation_retries": 5,

	"auth.jwt_secret": "",
	"auth.issuer":     "invoicing",
	"auth.token_ttl":  12 * time.Hour,

	"documents.pdf_enabled":    false,
	"documents.chrome_url":     "",
	"documents.no_sandbox":     false,
	"documents.render_timeout": 30 * time.Second,
	"documents.storage":        "none",
	"documents.endpoint":       "",
	"documents.region":         "us-east-1",
	"documents.bucket":         "",
	"documents.access_key":     "",
	"documents.secret_key":     "",
	"documents.use_ssl":        false,
	"documents.use_path_style": false,
}

// Load reads config.toml (optional) and the INV_ environment, then
// validates the result.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("INV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for _, list := range []*[]string{
		&cfg.HTTP.TrustedProxies,
		&cfg.HTTP.CORSOrigins,
		&cfg.Telemetry.ProfileTypes,
		&cfg.VAT.EUMembers,
	} {
		*list = splitList(*list)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList flattens comma separated items and drops blanks, so TOML
// arrays and "RO,DE, FR" env values end up alike.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(c.Database.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(c.Database.MaxIdleConns >= 0 && c.Database.MaxIdleConns <= c.Database.MaxOpenConns,
		"database.max_idle_conns must be between 0 and max_open_conns (%d)", c.Database.MaxOpenConns)

	check(c.VAT.Provider == "fake" || c.VAT.Provider == "vies",
		"vat.provider must be fake or vies, got %q", c.VAT.Provider)
	check(c.VAT.EnqueueThrottle < c.VAT.StaleAfter,
		"vat.enqueue_throttle (%s) must be shorter than vat.stale_after (%s)", c.VAT.EnqueueThrottle, c.VAT.StaleAfter)
	check(c.Invoicing.AllocationRetries >= 1, "invoicing.allocation_retries must be at least 1")
	check(c.Scheduler.Workers >= 1, "scheduler.workers must be at least 1")

	check(c.Auth.JWTSecret == "" || len(c.Auth.JWTSecret) >= 32, "auth.jwt_secret must be at least 32 characters")
	check(!c.Telemetry.ProfilingEnabled || c.Telemetry.PyroscopeAddress != "",
		"telemetry.pyroscope_address is required when profiling is enabled")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be within [0, 1], got %g", c.Telemetry.SamplingRatio)

	switch c.Documents.Storage {
	case "none":
	case "s3":
		check(c.Documents.Bucket != "", "documents.bucket is required for s3 storage")
	default:
		check(false, "documents.storage must be none or s3, got %q", c.Documents.Storage)
	}

	if c.App.Env == "production" {
		check(c.Database.Password != "", "database.password is required in production")
		check(c.Database.SSLMode != "disable", "database.sslmode cannot be disable in production")
		check(c.VAT.Provider != "fake", "vat.provider cannot be fake in production")
	}

	if err := errors.Join(problems...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DSN is the lib/pq URL for the database, with credentials escaped.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr is host:port for the Redis client.
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
