// Package config loads a nested account/options mapping from YAML (via
// viper), with per-account overrides merged onto a "default" section, an
// IMAPKIT_ environment overlay, optional file-watch hot reload, and
// secret resolution through an OS keyring before falling back to the
// inline config value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/oakmoss/imapkit/credential"
)

// AccountConfig is one named IMAP account's connection and auth settings.
type AccountConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Encryption   string `mapstructure:"encryption"` // "none", "ssl", "starttls"
	ValidateCert bool   `mapstructure:"validate_cert"`

	Auth     string `mapstructure:"auth"` // "login", "plain", "xoauth2", "sasl-login"
	Username string `mapstructure:"username"`
	// Password is the inline fallback; KeyringKey, if set, is tried first.
	Password   string `mapstructure:"password"`
	KeyringKey string `mapstructure:"keyring_key"`

	DisableUIDCache bool `mapstructure:"disable_uid_cache"`
	UIDCachePath    string `mapstructure:"uid_cache_path"`
}

// OptionsConfig holds library-wide defaults, applied unless an account
// overrides them.
type OptionsConfig struct {
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec"`
	StreamTimeoutSec  int `mapstructure:"stream_timeout_sec"`
}

// Config is the parsed nested mapping: a "default" account merged onto
// every named account, plus process-wide options.
type Config struct {
	Options  OptionsConfig            `mapstructure:"options"`
	Accounts map[string]AccountConfig `mapstructure:"accounts"`
}

// ResolvedPassword returns acct's password, preferring the OS keyring
// entry at KeyringKey when set and present, and falling back to the
// inline Password field otherwise.
func (c *Config) ResolvedPassword(accountName string) (string, error) {
	acct, ok := c.Accounts[accountName]
	if !ok {
		return "", fmt.Errorf("config: unknown account %q", accountName)
	}
	if acct.KeyringKey != "" {
		if pw, err := credential.Get(acct.KeyringKey); err == nil && pw != "" {
			return pw, nil
		}
	}
	return acct.Password, nil
}

// Loader wraps a viper instance configured for the accounts/options
// nested mapping, with default-merging and an optional hot-reload
// callback.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader reading path (YAML), registering the
// defaults every account inherits unless overridden.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("IMAPKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("options.connect_timeout_sec", 30)
	v.SetDefault("options.stream_timeout_sec", 300)
	v.SetDefault("accounts.default.port", 993)
	v.SetDefault("accounts.default.encryption", "ssl")
	v.SetDefault("accounts.default.validate_cert", true)
	v.SetDefault("accounts.default.auth", "login")

	return &Loader{v: v}
}

// Load reads the config file and unmarshals it, merging each named
// account's settings onto a copy of the "default" account's settings so
// callers only specify overrides.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if !isFileNotFound(err) {
			return nil, fmt.Errorf("config: reading %s: %w", l.v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if cfg.Accounts == nil {
		cfg.Accounts = make(map[string]AccountConfig)
	}

	def := cfg.Accounts["default"]
	for name, acct := range cfg.Accounts {
		if name == "default" {
			continue
		}
		cfg.Accounts[name] = mergeAccount(def, acct)
	}
	return &cfg, nil
}

// Watch re-invokes onChange with the freshly reloaded Config whenever the
// underlying file changes on disk, so a long-lived IDLE consumer can pick
// up rotated credentials without a restart.
func (l *Loader) Watch(onChange func(*Config, error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.Load()
		onChange(cfg, err)
	})
	l.v.WatchConfig()
}

func mergeAccount(def, override AccountConfig) AccountConfig {
	out := def
	if override.Host != "" {
		out.Host = override.Host
	}
	if override.Port != 0 {
		out.Port = override.Port
	}
	if override.Encryption != "" {
		out.Encryption = override.Encryption
	}
	if override.Auth != "" {
		out.Auth = override.Auth
	}
	if override.Username != "" {
		out.Username = override.Username
	}
	if override.Password != "" {
		out.Password = override.Password
	}
	if override.KeyringKey != "" {
		out.KeyringKey = override.KeyringKey
	}
	if override.UIDCachePath != "" {
		out.UIDCachePath = override.UIDCachePath
	}
	out.ValidateCert = override.ValidateCert || def.ValidateCert
	out.DisableUIDCache = override.DisableUIDCache
	return out
}

func isFileNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	_, ok := err.(*os.PathError)
	return ok
}

// DefaultPath returns "~/.config/imapkit/accounts.yaml", the conventional
// location a CLI consumer reads from absent an explicit -config flag.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "accounts.yaml")
	}
	return filepath.Join(home, ".config", "imapkit", "accounts.yaml")
}
