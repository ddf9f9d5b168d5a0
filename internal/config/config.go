package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tms.dev/internal/rbac"
)

// Config holds all application configuration.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Rate     RateConfig     `yaml:"rate_limit"`

	// RoleHierarchy lists roles highest rank first.
	RoleHierarchy []string `yaml:"role_hierarchy"`
}

// DatabaseConfig holds PostgreSQL settings. DSN wins over the discrete fields.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SSLMode      string `yaml:"sslmode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RateConfig bounds login attempts per client IP.
type RateConfig struct {
	Burst     int     `yaml:"burst"`
	PerSecond float64 `yaml:"per_second"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddr:        ":3000",
		GRPCAddr:        ":9090",
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		Database: DatabaseConfig{
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 10,
		},
		Rate:          RateConfig{Burst: 20, PerSecond: 10},
		RoleHierarchy: []string{"OWNER", "ADMIN", "VIEWER"},
	}
}

// Load reads the configuration and validates it for the API server.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Read loads the optional YAML file at path and applies environment overrides
// without validating. Tools that need only part of the config use it directly.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("TMS_HTTP_ADDR", &c.HTTPAddr)
	str("TMS_GRPC_ADDR", &c.GRPCAddr)
	str("TMS_LOG_LEVEL", &c.LogLevel)
	str("TMS_PG_DSN", &c.Database.DSN)
	str("DB_HOST", &c.Database.Host)
	integer("DB_PORT", &c.Database.Port)
	str("DB_USERNAME", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_SSLMODE", &c.Database.SSLMode)
	integer("TMS_DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	str("TMS_JWT_SECRET", &c.Auth.JWTSecret)
	integer("TMS_RATE_BURST", &c.Rate.Burst)

	if v, ok := lookup("TMS_RATE_PER_SEC"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TMS_RATE_PER_SEC: %w", err))
		} else {
			c.Rate.PerSecond = f
		}
	}
	if v, ok := lookup("TMS_SHUTDOWN_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("TMS_SHUTDOWN_TIMEOUT: %w", err))
		} else {
			c.ShutdownTimeout = d
		}
	}
	if v, ok := lookup("TMS_ROLE_HIERARCHY"); ok && strings.TrimSpace(v) != "" {
		c.RoleHierarchy = strings.Split(v, ",")
	}
	return errors.Join(errs...)
}

// ConnString returns the configured DSN, or one assembled from the discrete fields.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Host == "" || d.Name == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// Hierarchy parses RoleHierarchy.
func (c Config) Hierarchy() (*rbac.Hierarchy, error) {
	return rbac.ParseHierarchy(c.RoleHierarchy)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required (TMS_JWT_SECRET)"))
	}
	if c.Database.ConnString() == "" {
		errs = append(errs, errors.New("database DSN is required (TMS_PG_DSN or DB_HOST/DB_NAME)"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.Rate.Burst <= 0 || c.Rate.PerSecond <= 0 {
		errs = append(errs, errors.New("rate limit burst and per_second must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("database max_open_conns must be positive"))
	}
	if _, err := c.Hierarchy(); err != nil {
		errs = append(errs, fmt.Errorf("role_hierarchy: %w", err))
	}
	return errors.Join(errs...)
}
