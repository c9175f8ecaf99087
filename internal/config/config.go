// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers accepted by database.driver.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	SearchServer SearchServerConfig `mapstructure:"search_server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Spider       SpiderConfig       `mapstructure:"spider"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Search       SearchConfig       `mapstructure:"search"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// SearchServerConfig controls the query server listener.
type SearchServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig controls access to the index database.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DBName   string `mapstructure:"dbname"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Schema   string `mapstructure:"schema"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SpiderConfig governs one crawl run.
type SpiderConfig struct {
	StartURL    string `mapstructure:"start_url"`
	MaxDepth    int    `mapstructure:"max_depth"`
	WorkerCount int    `mapstructure:"worker_count"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	TimeoutSeconds             int `mapstructure:"timeout_seconds"`
	TLSHandshakeTimeoutSeconds int `mapstructure:"tls_handshake_timeout_seconds"`
	MaxRedirects               int `mapstructure:"max_redirects"`
	MaxBodyBytes               int `mapstructure:"max_body_bytes"`
}

// SearchConfig bounds query results.
type SearchConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// MetricsConfig controls the standalone metrics listener used by the crawl command.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search_server.port", 8080)
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.schema", "search_engine")
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("spider.start_url", "")
	v.SetDefault("spider.max_depth", 1)
	v.SetDefault("spider.worker_count", 4)
	v.SetDefault("spider.user_agent", "")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.tls_handshake_timeout_seconds", 10)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("http.max_body_bytes", 5<<20)
	v.SetDefault("search.max_results", 50)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.SearchServer.Port <= 0 || c.SearchServer.Port > 65535 {
		return fmt.Errorf("search_server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" && c.Database.DBName == "" {
			return fmt.Errorf("database.dsn or database.dbname must be set for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q", DriverPostgres, DriverMemory)
	}
	if c.Spider.MaxDepth < 0 {
		return fmt.Errorf("spider.max_depth must be >= 0")
	}
	if c.Spider.WorkerCount <= 0 {
		return fmt.Errorf("spider.worker_count must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.TLSHandshakeTimeoutSeconds <= 0 {
		return fmt.Errorf("http.tls_handshake_timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRedirects <= 0 {
		return fmt.Errorf("http.max_redirects must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	return nil
}

// ValidateCrawl checks the settings only the crawl command needs.
func (c Config) ValidateCrawl() error {
	if c.Spider.StartURL == "" {
		return fmt.Errorf("spider.start_url is required")
	}
	return nil
}

// PostgresDSN returns database.dsn when set, otherwise a URL built from the
// individual connection fields.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.DBName,
	}
	switch {
	case c.User != "" && c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	return u.String()
}

// FetchTimeout returns the per-request fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// TLSHandshakeTimeout returns the TLS handshake budget.
func (c Config) TLSHandshakeTimeout() time.Duration {
	return time.Duration(c.HTTP.TLSHandshakeTimeoutSeconds) * time.Second
}
