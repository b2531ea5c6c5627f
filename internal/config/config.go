// Package config loads settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read by LoadEnvFile when no path is given.
const DefaultEnvFile = ".env"

// Config holds the complete application configuration.
type Config struct {
	// Provider selects the mail client. Empty means auto-detect.
	Provider   string           `yaml:"provider"`
	Automation AutomationConfig `yaml:"automation"`
	Graph      GraphConfig      `yaml:"graph"`
	SES        SESConfig        `yaml:"ses"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Resend     ResendConfig     `yaml:"resend"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AutomationConfig selects the desktop mail client and its scripting host.
type AutomationConfig struct {
	Client  string `yaml:"client"`
	Command string `yaml:"command"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// SMTPConfig holds SMTP relay configuration.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	TLS      bool   `yaml:"tls"`
}

// ResendConfig holds Resend API configuration.
type ResendConfig struct {
	APIKey string `yaml:"api_key"`
	Sender string `yaml:"sender"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides it with environment variables. A missing file is an error.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFile copies variables from a dotenv file into the environment.
// Variables already set in the environment are left alone. With an empty
// path, DefaultEnvFile is read if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// GraphConfigured reports whether all four Graph credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// SESConfigured reports whether the SES region and sender are set.
// Credentials may come from the default AWS chain.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// SMTPConfigured reports whether an SMTP host and from address are set.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

// ResendConfigured reports whether the Resend API key and sender are set.
func (c *Config) ResendConfigured() bool {
	return c.Resend.APIKey != "" && c.Resend.Sender != ""
}

func (c *Config) applyDefaults() {
	c.SMTP.Port = 587
	c.SMTP.TLS = true
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with non-empty environment variables.
func (c *Config) applyEnvVars() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.Provider, "PROVIDER")
	c.Provider = strings.ToLower(c.Provider)

	setString(&c.Automation.Client, "AUTOMATION_CLIENT")
	c.Automation.Client = strings.ToLower(c.Automation.Client)
	setString(&c.Automation.Command, "AUTOMATION_COMMAND")

	setString(&c.Graph.TenantID, "GRAPH_TENANT_ID")
	setString(&c.Graph.ClientID, "GRAPH_CLIENT_ID")
	setString(&c.Graph.ClientSecret, "GRAPH_CLIENT_SECRET")
	setString(&c.Graph.Sender, "GRAPH_SENDER")

	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	setString(&c.SES.SecretAccessKey, "SES_SECRET_ACCESS_KEY")
	setString(&c.SES.Sender, "SES_SENDER")

	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid SMTP_PORT %q", v)
		}
		c.SMTP.Port = port
	}
	if v := os.Getenv("SMTP_TLS"); v != "" {
		tls, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_TLS %q", v)
		}
		c.SMTP.TLS = tls
	}

	setString(&c.Resend.APIKey, "RESEND_API_KEY")
	setString(&c.Resend.Sender, "RESEND_SENDER")

	setString(&c.Logging.Level, "LOG_LEVEL")
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	return nil
}
