// Package config loads ledger settings from defaults, an optional YAML file,
// a .env file and LEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ledger/internal/core"
)

// Environments select the default database location.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	envPrefix     = "LEDGER"
	devDBPath     = "./data/finance-dev.db"
	prodDBDir     = "ledger"
	prodDBFile    = "finance.db"
	maxCacheSize  = 10000
	maxCacheTTL   = 24 * time.Hour
	defaultCacheN = 64
)

type Config struct {
	Env    string
	DBPath string

	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Ledger behaviour
	AccountDeletePolicy string
	MonthlySalary       string

	// Report cache
	CacheSize int
	CacheTTL  time.Duration

	// AMQP change events; disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// NewViper returns a viper instance with every key defaulted and bound to
// its LEDGER_ environment variable (dots become underscores).
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("db_path", "")
	v.SetDefault("port", "8081")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("account_delete_policy", string(core.DeleteBlock))
	v.SetDefault("monthly_salary", "")
	v.SetDefault("cache.size", defaultCacheN)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "ledger")
	v.SetDefault("amqp.queue", "ledger_events")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadEnvFile loads a .env file for local development. A missing file is
// not an error.
func LoadEnvFile(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ReadFile merges a YAML config file into v. With an empty path it looks for
// ledger.yaml in the working directory and the user config dir, and a
// missing file is fine.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("ledger")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, prodDBDir))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load snapshots v into a Config.
func Load(v *viper.Viper) *Config {
	return &Config{
		Env:    strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		DBPath: v.GetString("db_path"),

		Port: v.GetString("port"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: strings.ToLower(v.GetString("log.format")),

		AccountDeletePolicy: strings.ToLower(v.GetString("account_delete_policy")),
		MonthlySalary:       v.GetString("monthly_salary"),

		CacheSize: v.GetInt("cache.size"),
		CacheTTL:  v.GetDuration("cache.ttl"),

		AMQPURL:      v.GetString("amqp.url"),
		AMQPExchange: v.GetString("amqp.exchange"),
		AMQPQueue:    v.GetString("amqp.queue"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Sprintf("invalid env '%s': must be %s or %s", c.Env, EnvDevelopment, EnvProduction))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	if !core.AccountDeletePolicy(c.AccountDeletePolicy).IsValid() {
		errs = append(errs, fmt.Sprintf("invalid account delete policy '%s': must be one of [block cascade orphan]", c.AccountDeletePolicy))
	}

	if c.MonthlySalary != "" {
		if salary, err := core.ParseMoney(c.MonthlySalary); err != nil {
			errs = append(errs, fmt.Sprintf("invalid monthly salary '%s': %v", c.MonthlySalary, err))
		} else if salary.Cents <= 0 {
			errs = append(errs, fmt.Sprintf("invalid monthly salary '%s': must be positive", c.MonthlySalary))
		}
	}

	if c.CacheSize < 1 || c.CacheSize > maxCacheSize {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be between 1 and %d", c.CacheSize, maxCacheSize))
	}
	if c.CacheTTL < 0 || c.CacheTTL > maxCacheTTL {
		errs = append(errs, fmt.Sprintf("invalid cache ttl %v: must be between 0 and %v", c.CacheTTL, maxCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ResolveDBPath returns the database file to open: the explicit db_path
// if set, else the per-environment default.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	if c.Env != EnvProduction {
		return devDBPath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, prodDBDir, prodDBFile), nil
}

// DeletePolicy returns the configured account delete policy.
func (c *Config) DeletePolicy() core.AccountDeletePolicy {
	return core.AccountDeletePolicy(c.AccountDeletePolicy)
}

// Salary returns the configured monthly salary, if any. Call after Validate.
func (c *Config) Salary() (core.Money, bool) {
	if c.MonthlySalary == "" {
		return core.Money{}, false
	}
	m, err := core.ParseMoney(c.MonthlySalary)
	if err != nil || m.Cents <= 0 {
		return core.Money{}, false
	}
	return m, true
}

// EventsEnabled reports whether change events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}
