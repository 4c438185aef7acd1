package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/wsi/internal/notify"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// WSI server
	URL     string
	PushURL string
	Token   string
	Timeout time.Duration

	// Event engine
	IncludeHidden    bool
	AutoRemoveFilter bool
	Grouping         string
	WebClientName    string

	// Notifications
	MQTT notify.MQTTConfig

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (WSI_ prefix, WSI_EVENTS_GROUPING for events.grouping)
// 3. .env files
// 4. Config file (configFile, or ~/.wsi.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("events.grouping", "source")
	v.SetDefault("events.web_client_name", constants.DefaultWebClientName)
	v.SetDefault("notify.mqtt.topic", "wsi/notifications")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapIO("read", configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".wsi")
		// A missing default config file is fine.
		_ = v.ReadInConfig()
	}

	config := &Config{
		ConfigFile: v.ConfigFileUsed(),
		Format:     v.GetString("format"),

		URL:     v.GetString("url"),
		PushURL: v.GetString("push_url"),
		Token:   v.GetString("token"),
		Timeout: v.GetDuration("timeout"),

		IncludeHidden:    v.GetBool("events.include_hidden"),
		AutoRemoveFilter: v.GetBool("events.auto_remove_filter"),
		Grouping:         v.GetString("events.grouping"),
		WebClientName:    v.GetString("events.web_client_name"),

		MQTT: notify.MQTTConfig{
			Broker:   v.GetString("notify.mqtt.broker"),
			ClientID: v.GetString("notify.mqtt.client_id"),
			Username: v.GetString("notify.mqtt.username"),
			Password: v.GetString("notify.mqtt.password"),
			Topic:    v.GetString("notify.mqtt.topic"),
		},

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

// Validate checks the settings needed to reach the WSI server.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.NewConfigError("url", "WSI server URL is required (set WSI_URL or url in ~/.wsi.yaml)", nil)
	}
	if c.Timeout < 0 {
		return errors.NewConfigError("timeout", "cannot be negative", nil)
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// Flag values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files. Variables
// that are already set are kept.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
