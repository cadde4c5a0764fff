// Package config loads stellar.toml, STELLAR_* environment overrides and
// defaults into a Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "stellar"
	configType = "toml"
	configDir  = ".config/stellar"
	envPrefix  = "STELLAR"

	DriverSQLite = "sqlite"
	DriverFile   = "file"

	ProviderLocal = "local"
	ProviderMock  = "mock"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Widget   WidgetConfig
	Auth     AuthConfig
	Identity IdentityConfig
	Log      LogConfig
	// File is the config file that was read, empty when none was found.
	File string
}

type ServerConfig struct {
	Addr        string
	TabIdleTTL  time.Duration
	ReadTimeout time.Duration
}

type StorageConfig struct {
	Driver string
	Path   string
}

type WidgetConfig struct {
	AppID                  string
	BaseURL                string
	APIBase                string
	ResetDelay             time.Duration
	PollInterval           time.Duration
	TrackPageViews         bool
	HideDefaultLauncher    bool
	CustomLauncherSelector string
}

type AuthConfig struct {
	Provider      string
	SessionSecret string
	// SessionSecretPass names a pass entry holding the session secret. It is
	// read when SessionSecret is empty and created on first use.
	SessionSecretPass string
	SessionTTL        time.Duration
	Mock              MockUserConfig
}

type MockUserConfig struct {
	Email    string
	Password string
	UserID   string
	Name     string
}

type IdentityConfig struct {
	// Overrides maps a normalized email to the widget user id sent for it.
	Overrides map[string]string
}

type LogConfig struct {
	Mode   string
	Level  string
	Redact bool
}

// Load reads the configuration. A missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	setDefaults(v, homeDir)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(filepath.Join(homeDir, configDir))
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:        v.GetString("server.addr"),
			TabIdleTTL:  v.GetDuration("server.tab_idle_ttl"),
			ReadTimeout: v.GetDuration("server.read_timeout"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
			Path:   v.GetString("storage.path"),
		},
		Widget: WidgetConfig{
			AppID:                  v.GetString("widget.app_id"),
			BaseURL:                v.GetString("widget.base_url"),
			APIBase:                v.GetString("widget.api_base"),
			ResetDelay:             v.GetDuration("widget.reset_delay"),
			PollInterval:           v.GetDuration("widget.poll_interval"),
			TrackPageViews:         v.GetBool("widget.track_page_views"),
			HideDefaultLauncher:    v.GetBool("widget.hide_default_launcher"),
			CustomLauncherSelector: v.GetString("widget.custom_launcher_selector"),
		},
		Auth: AuthConfig{
			Provider:          strings.ToLower(strings.TrimSpace(v.GetString("auth.provider"))),
			SessionSecret:     v.GetString("auth.session_secret"),
			SessionSecretPass: v.GetString("auth.session_secret_pass"),
			SessionTTL:        v.GetDuration("auth.session_ttl"),
			Mock: MockUserConfig{
				Email:    v.GetString("auth.mock.email"),
				Password: v.GetString("auth.mock.password"),
				UserID:   v.GetString("auth.mock.user_id"),
				Name:     v.GetString("auth.mock.name"),
			},
		},
		Identity: IdentityConfig{Overrides: parseOverrides(v.Get("identity.overrides"))},
		Log: LogConfig{
			Mode:   v.GetString("log.mode"),
			Level:  v.GetString("log.level"),
			Redact: v.GetBool("log.redact"),
		},
		File: v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.tab_idle_ttl", 30*time.Minute)
	v.SetDefault("server.read_timeout", 15*time.Second)

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.path", filepath.Join(homeDir, ".local", "share", "stellar"))

	v.SetDefault("widget.app_id", "")
	v.SetDefault("widget.base_url", "https://widget.intercom.io/widget/")
	v.SetDefault("widget.api_base", "https://api-iam.intercom.io")
	v.SetDefault("widget.reset_delay", 100*time.Millisecond)
	v.SetDefault("widget.poll_interval", time.Second)
	v.SetDefault("widget.track_page_views", false)
	v.SetDefault("widget.hide_default_launcher", false)
	v.SetDefault("widget.custom_launcher_selector", "#intercom-custom-launcher")

	v.SetDefault("auth.provider", ProviderLocal)
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_secret_pass", "")
	v.SetDefault("auth.session_ttl", 7*24*time.Hour)
	v.SetDefault("auth.mock.email", "demo@stellar.dev")
	v.SetDefault("auth.mock.password", "stellar-demo")
	v.SetDefault("auth.mock.user_id", "mock-user-1")
	v.SetDefault("auth.mock.name", "Demo User")

	v.SetDefault("log.mode", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.redact", true)
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage path is empty")
	}

	switch c.Auth.Provider {
	case ProviderLocal, ProviderMock:
	default:
		return fmt.Errorf("unsupported auth provider %q", c.Auth.Provider)
	}

	if c.Widget.ResetDelay <= 0 {
		return fmt.Errorf("widget reset delay must be positive, got %s", c.Widget.ResetDelay)
	}
	if c.Widget.PollInterval <= 0 {
		return fmt.Errorf("widget poll interval must be positive, got %s", c.Widget.PollInterval)
	}

	return nil
}

// parseOverrides accepts [[identity.overrides]] tables with email and
// user_id keys, or an "email=user_id,..." string from the environment.
func parseOverrides(raw any) map[string]string {
	overrides := map[string]string{}
	add := func(email, userID any) {
		e := strings.ToLower(strings.TrimSpace(fmt.Sprint(email)))
		u := strings.TrimSpace(fmt.Sprint(userID))
		if email != nil && userID != nil && e != "" && u != "" {
			overrides[e] = u
		}
	}

	switch value := raw.(type) {
	case string:
		for _, pair := range strings.Split(value, ",") {
			email, userID, ok := strings.Cut(pair, "=")
			if ok {
				add(email, userID)
			}
		}
	case []any:
		for _, entry := range value {
			if table, ok := entry.(map[string]any); ok {
				add(table["email"], table["user_id"])
			}
		}
	case []map[string]any:
		for _, table := range value {
			add(table["email"], table["user_id"])
		}
	}

	return overrides
}
