// Package config loads CLI configuration with viper.
// Only non-secret settings are kept here; secrets go to the OS keyring.
//
// Values are resolved in viper's usual order: flags bound by the caller,
// TETHER_* environment variables (a .env / .env.local file is loaded first),
// the YAML config file, then the defaults below.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tether/cli/internal/xdg"
)

// EnvPrefix is the prefix for environment overrides, e.g. TETHER_APPWRITE_PROJECT.
const EnvPrefix = "TETHER"

// Store backends.
const (
	BackendKeyring  = "keyring"
	BackendPostgres = "postgres"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	Appwrite AppwriteConfig `mapstructure:"appwrite"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Identity IdentityConfig `mapstructure:"identity"`
}

// AppwriteConfig points at the Appwrite project that owns the user accounts.
type AppwriteConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Project  string `mapstructure:"project"`
}

// StoreConfig selects where the cached user record lives.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	DSN        string `mapstructure:"dsn"`
	KeyringDir string `mapstructure:"keyring_dir"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IdentityConfig tunes calls to the identity service.
type IdentityConfig struct {
	// Timeout bounds every HTTP call; zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("appwrite.endpoint", "https://cloud.appwrite.io/v1")
	v.SetDefault("appwrite.project", "")
	v.SetDefault("store.backend", BackendKeyring)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.keyring_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("identity.timeout", 10*time.Second)
}

// DefaultPath returns the path of the config file in the XDG config dir.
func DefaultPath() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load resolves configuration into v and decodes it. When file is empty the
// default path is used and a missing file is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	var c Config

	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := file != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return c, err
		}
		file = p
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || isNotExist(err)) {
			return c, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Appwrite.Endpoint = strings.TrimRight(strings.TrimSpace(c.Appwrite.Endpoint), "/")
	return c, nil
}

// Validate checks that the configuration is usable for talking to Appwrite.
func (c Config) Validate() error {
	if c.Appwrite.Endpoint == "" {
		return errors.New("appwrite.endpoint is required")
	}
	if c.Appwrite.Project == "" {
		return errors.New("appwrite.project is required (set it in config.yaml or TETHER_APPWRITE_PROJECT)")
	}
	switch c.Store.Backend {
	case BackendKeyring:
	case BackendPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (want %q or %q)", c.Store.Backend, BackendKeyring, BackendPostgres)
	}
	if c.Identity.Timeout < 0 {
		return errors.New("identity.timeout must not be negative")
	}
	return nil
}
