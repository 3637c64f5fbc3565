// Package config loads the harvester configuration from YAML, with
// credentials resolved from the environment so secrets never live in
// the config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

// AccountConfig declares one portal account. SecretEnv names the
// environment variable holding the password.
type AccountConfig struct {
	Site      string `mapstructure:"site"`
	CompanyID string `mapstructure:"company_id"`
	PersonID  string `mapstructure:"person_id"`
	SecretEnv string `mapstructure:"secret_env"`
	Label     string `mapstructure:"label"`
}

type BandConfig struct {
	FromMinute int           `mapstructure:"from_minute"`
	ToMinute   int           `mapstructure:"to_minute"`
	Interval   time.Duration `mapstructure:"interval"`
}

type RetryConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	CooldownMin time.Duration `mapstructure:"cooldown_min"`
	CooldownMax time.Duration `mapstructure:"cooldown_max"`
}

type BillingConfig struct {
	// Tax id numeric prefixes above Threshold classify as "empresa".
	Threshold int64             `mapstructure:"threshold"`
	Labels    map[string]string `mapstructure:"labels"`
}

type ExtractionConfig struct {
	MaxPages     int           `mapstructure:"max_pages"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	TableTimeout time.Duration `mapstructure:"table_timeout"`
	LookbackDays int           `mapstructure:"lookback_days"`
}

type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
}

type StoreConfig struct {
	Path      string `mapstructure:"path"`
	ExportDir string `mapstructure:"export_dir"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

type SupervisorConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	ErrorSleep      time.Duration `mapstructure:"error_sleep"`
}

type MemoryConfig struct {
	MinAvailableBytes uint64        `mapstructure:"min_available_bytes"`
	Recheck           time.Duration `mapstructure:"recheck"`
	MaxWaits          int           `mapstructure:"max_waits"`
}

type Config struct {
	Accounts   []AccountConfig  `mapstructure:"accounts"`
	Schedule   []BandConfig     `mapstructure:"schedule"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Memory     MemoryConfig     `mapstructure:"memory"`
}

// Load reads the config file at path, applies defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.backoff_base", "3s")
	v.SetDefault("retry.backoff_cap", "5s")
	v.SetDefault("retry.cooldown_min", "8m")
	v.SetDefault("retry.cooldown_max", "15m")

	v.SetDefault("billing.threshold", 50_000_000)

	v.SetDefault("extraction.max_pages", 50)
	v.SetDefault("extraction.settle_delay", "3s")
	v.SetDefault("extraction.table_timeout", "15s")
	v.SetDefault("extraction.lookback_days", 5)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", "40s")

	v.SetDefault("store.path", "transfers.db")
	v.SetDefault("store.export_dir", "exports")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.console", true)

	v.SetDefault("supervisor.poll_interval", "1m")
	v.SetDefault("supervisor.cleanup_interval", "1h")
	v.SetDefault("supervisor.error_sleep", "5m")

	v.SetDefault("memory.min_available_bytes", uint64(1<<30))
	v.SetDefault("memory.recheck", "5m")
	v.SetDefault("memory.max_waits", 3)
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("config: no accounts declared")
	}
	for i, a := range c.Accounts {
		if a.Site == "" {
			return fmt.Errorf("config: account %d missing site", i)
		}
		if a.PersonID == "" {
			return fmt.Errorf("config: account %d missing person_id", i)
		}
		if a.SecretEnv == "" {
			return fmt.Errorf("config: account %d missing secret_env", i)
		}
	}
	for i, b := range c.Schedule {
		if b.ToMinute <= b.FromMinute {
			return fmt.Errorf("config: schedule band %d has empty range", i)
		}
	}
	return nil
}

// ResolveAccounts turns account configs into runtime accounts, reading
// each secret from its environment variable.
func (c *Config) ResolveAccounts() ([]bank.Account, error) {
	accounts := make([]bank.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		secret := os.Getenv(a.SecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("config: environment variable %s is empty", a.SecretEnv)
		}
		accounts = append(accounts, bank.Account{
			Site:      bank.SiteCode(strings.ToUpper(a.Site)),
			CompanyID: a.CompanyID,
			PersonID:  a.PersonID,
			Secret:    secret,
			Label:     a.Label,
		})
	}
	return accounts, nil
}
