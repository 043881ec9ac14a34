package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	// Required fields
	DataDir      string `mapstructure:"data_dir"`
	JWTSecretKey string `mapstructure:"jwt_secret_key"`

	// Optional API settings
	APIHost string `mapstructure:"api_host"`
	APIPort int    `mapstructure:"api_port"`

	// Optional SSL settings
	SSLCert string `mapstructure:"ssl_cert"`
	SSLKey  string `mapstructure:"ssl_key"`

	// Optional CORS settings
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Optional logging settings
	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	// Scheduler poll interval in seconds
	SchedulerInterval int `mapstructure:"scheduler_interval"`

	// Policy evaluator seeds. Operations listed here resolve to allow for
	// subjects not on any explicit list; everything else falls through to
	// the default deny.
	PolicyAllowedOperations []string `mapstructure:"policy_allowed_operations"`
	PolicyWhitelist         []string `mapstructure:"policy_whitelist"`
	PolicyBlacklist         []string `mapstructure:"policy_blacklist"`
	PolicyQuarantine        []string `mapstructure:"policy_quarantine"`

	// Derived paths
	ConfigPath string
	DBPath     string
	SandboxDir string
}

const (
	DefaultConfigPath        = "/etc/backstop/config.yml"
	DefaultAPIHost           = "0.0.0.0"
	DefaultAPIPort           = 8440
	DefaultLogLevel          = "info"
	DefaultSchedulerInterval = 30
)

var defaultAllowedOperations = []string{"integrity-test", "restore-test", "restore"}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("api_host", DefaultAPIHost)
	viper.SetDefault("api_port", DefaultAPIPort)
	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("scheduler_interval", DefaultSchedulerInterval)
	viper.SetDefault("policy_allowed_operations", defaultAllowedOperations)

	// Allow environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BACKSTOP")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ConfigPath = configPath
	cfg.DBPath = filepath.Join(cfg.DataDir, "backstop.sqlite3")
	cfg.SandboxDir = filepath.Join(cfg.DataDir, "sandbox")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.JWTSecretKey == "" {
		return fmt.Errorf("jwt_secret_key is required")
	}

	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		return fmt.Errorf("data_dir does not exist: %s", c.DataDir)
	}

	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler_interval must be positive")
	}

	// Validate SSL config if provided
	if c.SSLCert != "" || c.SSLKey != "" {
		if c.SSLCert == "" || c.SSLKey == "" {
			return fmt.Errorf("both ssl_cert and ssl_key must be provided")
		}
		if _, err := os.Stat(c.SSLCert); os.IsNotExist(err) {
			return fmt.Errorf("ssl_cert file does not exist: %s", c.SSLCert)
		}
		if _, err := os.Stat(c.SSLKey); os.IsNotExist(err) {
			return fmt.Errorf("ssl_key file does not exist: %s", c.SSLKey)
		}
	}

	return nil
}

func (c *Config) IsDevMode() bool {
	return os.Getenv("BACKSTOP_DEV_MODE") == "1"
}
