package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the onboarding CLI.
type Config struct {
	Credentials CredentialsConfig
	Onboard     OnboardConfig
}

// CredentialsConfig selects the edgerc section used to sign requests.
type CredentialsConfig struct {
	Edgerc     string `env:"AKAMAI_EDGERC" envDefault:"~/.edgerc"`
	Section    string `env:"AKAMAI_EDGERC_SECTION" envDefault:"onboard"`
	AccountKey string `env:"AKAMAI_ACCOUNT_KEY"`
}

// OnboardConfig holds pipeline behavior configuration.
type OnboardConfig struct {
	LogsDir         string        `env:"ONBOARD_LOGS_DIR" envDefault:"logs"`
	PollInterval    time.Duration `env:"ONBOARD_POLL_INTERVAL" envDefault:"30s"`
	WAFPollInterval time.Duration `env:"ONBOARD_WAF_POLL_INTERVAL" envDefault:"60s"`
	SubmitQPS       float32       `env:"ONBOARD_SUBMIT_QPS" envDefault:"2"`
	LogLevel        string        `env:"ONBOARD_LOG_LEVEL" envDefault:"info"`
	PipelineCommand string        `env:"ONBOARD_PIPELINE_COMMAND" envDefault:"akamai"`
}

// Overrides are command line values that take precedence over the environment.
// Empty fields leave the environment value in place.
type Overrides struct {
	Edgerc     string
	Section    string
	AccountKey string
	LogLevel   string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Credentials); err != nil {
		return nil, fmt.Errorf("parsing credentials config: %w", err)
	}
	if err := env.Parse(&cfg.Onboard); err != nil {
		return nil, fmt.Errorf("parsing onboard config: %w", err)
	}

	return cfg, nil
}

// Apply copies every non-empty override into the configuration.
func (c *Config) Apply(o Overrides) {
	if o.Edgerc != "" {
		c.Credentials.Edgerc = o.Edgerc
	}
	if o.Section != "" {
		c.Credentials.Section = o.Section
	}
	if o.AccountKey != "" {
		c.Credentials.AccountKey = o.AccountKey
	}
	if o.LogLevel != "" {
		c.Onboard.LogLevel = o.LogLevel
	}
}

// EdgercPath returns the edgerc location with a leading ~ expanded.
func (c *CredentialsConfig) EdgercPath() (string, error) {
	path, err := homedir.Expand(c.Edgerc)
	if err != nil {
		return "", fmt.Errorf("failed to expand edgerc path %q: %w", c.Edgerc, err)
	}
	return path, nil
}

// ZapLevel parses the configured log level.
func (c *OnboardConfig) ZapLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Credentials.Edgerc == "" {
		return fmt.Errorf("AKAMAI_EDGERC must not be empty")
	}
	if c.Credentials.Section == "" {
		return fmt.Errorf("AKAMAI_EDGERC_SECTION must not be empty")
	}
	if c.Onboard.PollInterval <= 0 {
		return fmt.Errorf("ONBOARD_POLL_INTERVAL must be positive, got %s", c.Onboard.PollInterval)
	}
	if c.Onboard.WAFPollInterval <= 0 {
		return fmt.Errorf("ONBOARD_WAF_POLL_INTERVAL must be positive, got %s", c.Onboard.WAFPollInterval)
	}
	if c.Onboard.SubmitQPS <= 0 {
		return fmt.Errorf("ONBOARD_SUBMIT_QPS must be positive, got %v", c.Onboard.SubmitQPS)
	}
	if _, err := c.Onboard.ZapLevel(); err != nil {
		return err
	}

	return nil
}
