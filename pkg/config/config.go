package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "STOREFRONT_"

// DefaultSecretKey is the development signing secret
const DefaultSecretKey = "change-me-in-production"

// ScheduleParser parses job schedules: five or six cron fields, or a
// descriptor such as "@every 30s"
var ScheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config is the storefront configuration
type Config struct {
	// DataDir holds the database file
	DataDir string `yaml:"data_dir"`

	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Orders    OrdersConfig    `yaml:"orders"`
	Server    ServerConfig    `yaml:"server"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level log.Level `yaml:"level"`
	JSON  bool      `yaml:"json"`
}

// AuthConfig configures tokens and password rules
type AuthConfig struct {
	SecretKey            string        `yaml:"secret_key"`
	Issuer               string        `yaml:"issuer"`
	TokenTTL             time.Duration `yaml:"token_ttl"`
	PasswordMinLength    int           `yaml:"password_min_length"`
	PasswordRequireDigit bool          `yaml:"password_require_digit"`

	// BcryptCost is the work factor for new password hashes
	BcryptCost int `yaml:"bcrypt_cost"`
}

// PasswordRules returns the rules new passwords are checked against
func (a AuthConfig) PasswordRules() types.PasswordRules {
	return types.PasswordRules{
		MinLength:    a.PasswordMinLength,
		RequireDigit: a.PasswordRequireDigit,
	}
}

// OrdersConfig configures the order lifecycle
type OrdersConfig struct {
	// StrictTransitions only allows pending -> processing -> completed
	StrictTransitions bool `yaml:"strict_transitions"`
}

// ServerConfig configures `storefront serve`
type ServerConfig struct {
	HealthAddr string `yaml:"health_addr"`
}

// JobsConfig holds cron schedules for background jobs. An empty schedule
// disables the job.
type JobsConfig struct {
	MetricsSchedule      string `yaml:"metrics_schedule"`
	TokenCleanupSchedule string `yaml:"token_cleanup_schedule"`
	SnapshotSchedule     string `yaml:"snapshot_schedule"`
	SnapshotDir          string `yaml:"snapshot_dir"`
	SnapshotCompress     bool   `yaml:"snapshot_compress"`
}

// BootstrapConfig seeds an empty store
type BootstrapConfig struct {
	AdminUsername string               `yaml:"admin_username"`
	AdminEmail    string               `yaml:"admin_email"`
	AdminPassword string               `yaml:"admin_password"`
	Products      []types.ProductDraft `yaml:"products"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "data",
		Log: LogConfig{
			Level: log.InfoLevel,
		},
		Auth: AuthConfig{
			SecretKey:            DefaultSecretKey,
			Issuer:               "storefront",
			TokenTTL:             30 * time.Minute,
			PasswordMinLength:    8,
			PasswordRequireDigit: true,
			BcryptCost:           12,
		},
		Server: ServerConfig{
			HealthAddr: "127.0.0.1:9090",
		},
		Jobs: JobsConfig{
			MetricsSchedule:      "@every 30s",
			TokenCleanupSchedule: "@every 10m",
			SnapshotSchedule:     "",
			SnapshotDir:          "snapshots",
			SnapshotCompress:     true,
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
			AdminEmail:    "admin@example.com",
		},
	}
}

// Options select the sources Load reads
type Options struct {
	// File is an optional YAML configuration file
	File string

	// EnvFile is a dotenv file. Empty means ".env" if it exists.
	EnvFile string
}

// Load builds the configuration from defaults, then the dotenv file, then
// the YAML file, then STOREFRONT_* environment variables. Variables already
// set in the process environment win over the dotenv file.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	if opts.File != "" {
		if err := cfg.loadFile(opts.File); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("DATA_DIR", &c.DataDir)
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = log.Level(strings.ToLower(v))
	}
	boolean("LOG_JSON", &c.Log.JSON)

	str("SECRET_KEY", &c.Auth.SecretKey)
	str("TOKEN_ISSUER", &c.Auth.Issuer)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)
	integer("PASSWORD_MIN_LENGTH", &c.Auth.PasswordMinLength)
	boolean("PASSWORD_REQUIRE_DIGIT", &c.Auth.PasswordRequireDigit)
	integer("BCRYPT_COST", &c.Auth.BcryptCost)

	boolean("STRICT_TRANSITIONS", &c.Orders.StrictTransitions)
	str("HEALTH_ADDR", &c.Server.HealthAddr)

	str("METRICS_SCHEDULE", &c.Jobs.MetricsSchedule)
	str("TOKEN_CLEANUP_SCHEDULE", &c.Jobs.TokenCleanupSchedule)
	str("SNAPSHOT_SCHEDULE", &c.Jobs.SnapshotSchedule)
	str("SNAPSHOT_DIR", &c.Jobs.SnapshotDir)
	boolean("SNAPSHOT_COMPRESS", &c.Jobs.SnapshotCompress)

	str("ADMIN_USERNAME", &c.Bootstrap.AdminUsername)
	str("ADMIN_EMAIL", &c.Bootstrap.AdminEmail)
	str("ADMIN_PASSWORD", &c.Bootstrap.AdminPassword)

	return errors.Join(errs...)
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if !c.Log.Level.Valid() {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_key is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.PasswordMinLength < 1 {
		errs = append(errs, errors.New("auth.password_min_length must be at least 1"))
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost %d is outside 4-31", c.Auth.BcryptCost))
	}

	for name, spec := range map[string]string{
		"jobs.metrics_schedule":       c.Jobs.MetricsSchedule,
		"jobs.token_cleanup_schedule": c.Jobs.TokenCleanupSchedule,
		"jobs.snapshot_schedule":      c.Jobs.SnapshotSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := ScheduleParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Jobs.SnapshotSchedule != "" && c.Jobs.SnapshotDir == "" {
		errs = append(errs, errors.New("jobs.snapshot_dir is required when snapshots are scheduled"))
	}

	for i, p := range c.Bootstrap.Products {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("bootstrap.products[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// UsesDefaultSecret reports whether tokens are signed with the built-in secret
func (c *Config) UsesDefaultSecret() bool {
	return c.Auth.SecretKey == DefaultSecretKey
}

// LoggerConfig returns the logger configuration
func (c *Config) LoggerConfig() log.Config {
	return log.Config{
		Level:      c.Log.Level,
		JSONOutput: c.Log.JSON,
	}
}
