package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Store     StoreConfig
	Receipt   ReceiptConfig
	Ledger    LedgerConfig
	Security  SecurityConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// StoreConfig holds the embedded store location and, for postgres, the
// connection settings
type StoreConfig struct {
	Driver          string // sqlite, postgres
	Path            string // sqlite database file
	BusyTimeout     time.Duration
	SlowQuery       time.Duration // queries slower than this are logged at warn
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// ReceiptConfig holds receipt document settings
type ReceiptConfig struct {
	Dir           string
	Format        string // html, pdf
	ChromeTimeout time.Duration
	ChromeURL     string // remote Chrome DevTools endpoint, optional
	NoSandbox     bool
}

// LedgerConfig holds invoice settings
type LedgerConfig struct {
	DefaultTaxRate string
	NumberPrefix   string
}

// SecurityConfig holds credential settings
type SecurityConfig struct {
	BcryptCost      int
	RecoveryCodeTTL time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds in-process metrics settings
type TelemetryConfig struct {
	MetricsEnabled bool
	ServiceName    string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// Load reads configuration from config.toml (searched in the working
// directory), the environment and built-in defaults.
// Priority (highest to lowest):
// 1. Environment variables with POS_ prefix (e.g., POS_STORE_PATH)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			// Config file not found is OK, we'll use defaults and env vars
		}
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Store: StoreConfig{
			Driver:          v.GetString("store.driver"),
			Path:            v.GetString("store.path"),
			BusyTimeout:     v.GetDuration("store.busy_timeout"),
			SlowQuery:       v.GetDuration("store.slow_query"),
			Host:            v.GetString("store.host"),
			Port:            v.GetInt("store.port"),
			User:            v.GetString("store.user"),
			Password:        v.GetString("store.password"),
			DBName:          v.GetString("store.dbname"),
			SSLMode:         v.GetString("store.sslmode"),
			MaxOpenConns:    v.GetInt("store.max_open_conns"),
			MaxIdleConns:    v.GetInt("store.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("store.conn_max_lifetime"),
		},
		Receipt: ReceiptConfig{
			Dir:           v.GetString("receipt.dir"),
			Format:        v.GetString("receipt.format"),
			ChromeTimeout: v.GetDuration("receipt.chrome_timeout"),
			ChromeURL:     v.GetString("receipt.chrome_url"),
			NoSandbox:     v.GetBool("receipt.no_sandbox"),
		},
		Ledger: LedgerConfig{
			DefaultTaxRate: v.GetString("ledger.default_tax_rate"),
			NumberPrefix:   v.GetString("ledger.number_prefix"),
		},
		Security: SecurityConfig{
			BcryptCost:      v.GetInt("security.bcrypt_cost"),
			RecoveryCodeTTL: v.GetDuration("security.recovery_code_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: v.GetBool("telemetry.metrics_enabled"),
			ServiceName:    v.GetString("telemetry.service_name"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pos-core"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join("data", "pos.db")
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = 5 * time.Second
	}
	if cfg.Store.SlowQuery == 0 {
		cfg.Store.SlowQuery = 200 * time.Millisecond
	}
	if cfg.Store.Host == "" {
		cfg.Store.Host = "localhost"
	}
	if cfg.Store.Port == 0 {
		cfg.Store.Port = 5432
	}
	if cfg.Store.User == "" {
		cfg.Store.User = "postgres"
	}
	if cfg.Store.DBName == "" {
		cfg.Store.DBName = "pos"
	}
	if cfg.Store.SSLMode == "" {
		cfg.Store.SSLMode = "disable"
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = 10
	}
	if cfg.Store.MaxIdleConns == 0 {
		cfg.Store.MaxIdleConns = 2
	}
	if cfg.Store.ConnMaxLifetime == 0 {
		cfg.Store.ConnMaxLifetime = 30
	}
	if cfg.Receipt.Dir == "" {
		cfg.Receipt.Dir = "invoices"
	}
	if cfg.Receipt.Format == "" {
		cfg.Receipt.Format = FormatHTML
	}
	if cfg.Receipt.ChromeTimeout == 0 {
		cfg.Receipt.ChromeTimeout = 30 * time.Second
	}
	if cfg.Ledger.DefaultTaxRate == "" {
		cfg.Ledger.DefaultTaxRate = "0.23"
	}
	if cfg.Ledger.NumberPrefix == "" {
		cfg.Ledger.NumberPrefix = "INV"
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Security.RecoveryCodeTTL == 0 {
		cfg.Security.RecoveryCodeTTL = 15 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	if c.Store.MaxIdleConns > c.Store.MaxOpenConns {
		return fmt.Errorf("store.max_idle_conns (%d) cannot exceed store.max_open_conns (%d)",
			c.Store.MaxIdleConns, c.Store.MaxOpenConns)
	}

	switch c.Receipt.Format {
	case FormatHTML, FormatPDF:
	default:
		return fmt.Errorf("receipt.format must be %q or %q, got %q", FormatHTML, FormatPDF, c.Receipt.Format)
	}

	rate, err := c.Ledger.TaxRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("ledger.default_tax_rate must be between 0 and 1, got %s", rate)
	}

	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("security.bcrypt_cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Security.BcryptCost)
	}

	if c.App.Env == "production" && c.Store.Driver == DriverPostgres && c.Store.SSLMode == "disable" {
		return fmt.Errorf("store.sslmode cannot be 'disable' in production")
	}

	return nil
}

// TaxRate parses the configured default tax rate
func (l LedgerConfig) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(l.DefaultTaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger.default_tax_rate %q is not a number: %w", l.DefaultTaxRate, err)
	}
	return rate, nil
}

// DSN returns the connection string for the configured driver
func (s *StoreConfig) DSN() string {
	if s.Driver == DriverPostgres {
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(s.User, s.Password),
			Host:   fmt.Sprintf("%s:%d", s.Host, s.Port),
			Path:   s.DBName,
		}
		q := u.Query()
		q.Set("sslmode", s.SSLMode)
		u.RawQuery = q.Encode()
		return u.String()
	}

	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", s.BusyTimeout.Milliseconds()))
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	return "file:" + s.Path + "?" + q.Encode()
}
