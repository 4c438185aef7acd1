package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
)

// clearEnv unsets the variables LoadConfig reads for the test's duration.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WSI_URL", "WSI_PUSH_URL", "WSI_TOKEN", "WSI_TIMEOUT", "WSI_FORMAT",
		"WSI_EVENTS_GROUPING", "WSI_EVENTS_INCLUDE_HIDDEN", "WSI_NOTIFY_MQTT_BROKER",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "wsi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`url: https://wsi.example:8443
token: file-token
timeout: 5s
format: json
events:
  include_hidden: true
  grouping: none
  web_client_name: Control Room
notify:
  mqtt:
    broker: tcp://localhost:1883
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "https://wsi.example:8443", cfg.URL)
	assert.Equal(t, "file-token", cfg.Token)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.IncludeHidden)
	assert.Equal(t, "none", cfg.Grouping)
	assert.Equal(t, "Control Room", cfg.WebClientName)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "wsi/notifications", cfg.MQTT.Topic)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "wsi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://file.example\n"), 0o600))
	t.Setenv("WSI_URL", "https://env.example")
	t.Setenv("WSI_EVENTS_GROUPING", "system")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.URL)
	assert.Equal(t, "system", cfg.Grouping)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultHTTPTimeout, cfg.Timeout)
	assert.Equal(t, "source", cfg.Grouping)
	assert.Equal(t, constants.DefaultWebClientName, cfg.WebClientName)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, "stderr", cfg.LogOutput)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{URL: "https://wsi.example", Timeout: time.Second}},
		{name: "missing url", cfg: Config{}, wantErr: true},
		{name: "negative timeout", cfg: Config{URL: "https://wsi.example", Timeout: -time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *errors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestUpdateFromFlags(t *testing.T) {
	cfg := &Config{Format: "yaml", LogLevel: "warn"}

	cfg.UpdateFromFlags(true, false, true, "", "")
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "yaml", cfg.Format)
	assert.Equal(t, "warn", cfg.LogLevel)

	cfg.UpdateFromFlags(false, true, false, "json", "error")
	assert.True(t, cfg.Quiet)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "error", cfg.LogLevel)
}
