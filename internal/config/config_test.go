package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, ".config", "stellar")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stellar.toml"), []byte(body), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(home, ".local", "share", "stellar"), cfg.Storage.Path)
	assert.Equal(t, "https://widget.intercom.io/widget/", cfg.Widget.BaseURL)
	assert.Equal(t, 100*time.Millisecond, cfg.Widget.ResetDelay)
	assert.Equal(t, time.Second, cfg.Widget.PollInterval)
	assert.Equal(t, "#intercom-custom-launcher", cfg.Widget.CustomLauncherSelector)
	assert.Equal(t, ProviderLocal, cfg.Auth.Provider)
	assert.True(t, cfg.Log.Redact)
	assert.Empty(t, cfg.Identity.Overrides)
	assert.Empty(t, cfg.File)
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, `
[server]
addr = "0.0.0.0:9000"

[storage]
driver = "file"
path = "/srv/stellar"

[widget]
app_id = "abc123"
reset_delay = "250ms"
track_page_views = true

[auth]
provider = "mock"

[[identity.overrides]]
email = " Test@Stellar.dev "
user_id = "intercom-test-42"
`)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "/srv/stellar", cfg.Storage.Path)
	assert.Equal(t, "abc123", cfg.Widget.AppID)
	assert.Equal(t, 250*time.Millisecond, cfg.Widget.ResetDelay)
	assert.True(t, cfg.Widget.TrackPageViews)
	assert.Equal(t, ProviderMock, cfg.Auth.Provider)
	assert.Equal(t, map[string]string{"test@stellar.dev": "intercom-test-42"}, cfg.Identity.Overrides)
	assert.Equal(t, filepath.Join(home, ".config", "stellar", "stellar.toml"), cfg.File)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "[widget]\napp_id = \"from-file\"\n")
	t.Setenv("STELLAR_WIDGET_APP_ID", "from-env")
	t.Setenv("STELLAR_IDENTITY_OVERRIDES", "a@b.com=u-1, c@d.com = u-2")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Widget.AppID)
	assert.Equal(t, map[string]string{"a@b.com": "u-1", "c@d.com": "u-2"}, cfg.Identity.Overrides)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "driver", body: "[storage]\ndriver = \"redis\"\n", want: "unsupported storage driver"},
		{name: "provider", body: "[auth]\nprovider = \"firebase\"\n", want: "unsupported auth provider"},
		{name: "reset delay", body: "[widget]\nreset_delay = \"0s\"\n", want: "reset delay"},
		{name: "malformed", body: "[widget\n", want: "read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("HOME", home)
			writeConfig(t, home, tt.body)

			_, err := Load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
