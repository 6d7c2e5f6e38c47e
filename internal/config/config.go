// Package config loads the process-wide cloudmailbot configuration.
//
// Values are read, in increasing priority, from built-in defaults, a YAML
// config file, a .env file in the working directory, and CLOUDMAIL_*
// environment variables (nested keys use underscores, e.g.
// CLOUDMAIL_STORE_TYPE). The result is treated as immutable after Load.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "CLOUDMAIL"

// Store backend names.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreValkey = "valkey"
)

// Config is the top-level configuration.
type Config struct {
	// APIBaseURL is the CloudMail server root, without a trailing slash.
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`

	// EmailDomain is appended to bare usernames, e.g. "@example.com".
	EmailDomain string `mapstructure:"email_domain" yaml:"email_domain"`

	// AdminEmail and AdminPassword authenticate both token endpoints.
	AdminEmail    string `mapstructure:"admin_email" yaml:"admin_email"`
	AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`

	// AdminIDs lists chat user IDs allowed to run admin-only commands.
	AdminIDs []string `mapstructure:"admin_ids" yaml:"admin_ids"`

	// HTTPTimeout bounds every call to the CloudMail API.
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`

	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Signal SignalConfig `mapstructure:"signal" yaml:"signal"`
}

// StoreConfig selects the user binding backend.
type StoreConfig struct {
	// Type is one of memory, sqlite, valkey (default: memory).
	Type string `mapstructure:"type" yaml:"type"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	Valkey ValkeyConfig `mapstructure:"valkey" yaml:"valkey"`
}

// ValkeyConfig holds the valkey backend connection settings.
type ValkeyConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	Password   string `mapstructure:"password" yaml:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix" yaml:"key_prefix"`
	DB         int    `mapstructure:"db" yaml:"db"`
}

// SignalConfig configures the signal-cli chat transport.
type SignalConfig struct {
	// Account is the phone number registered with signal-cli.
	Account string `mapstructure:"account" yaml:"account"`

	// PollInterval is the receive timeout of a single poll.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// DefaultConfigDir returns ~/.config/cloudmailbot.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cloudmailbot")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "")
	v.SetDefault("email_domain", "")
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("admin_ids", []string{})
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("store.type", StoreMemory)
	v.SetDefault("store.sqlite_path", filepath.Join(DefaultConfigDir(), "bindings.db"))
	v.SetDefault("store.valkey.url", "")
	v.SetDefault("store.valkey.password", "")
	v.SetDefault("store.valkey.tls_enabled", false)
	v.SetDefault("store.valkey.key_prefix", "cloudmail:")
	v.SetDefault("store.valkey.db", 0)
	v.SetDefault("signal.account", "")
	v.SetDefault("signal.poll_interval", 5*time.Second)
}

// Load reads the configuration. An empty path searches DefaultConfigDir for
// config.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.EmailDomain = strings.TrimSpace(c.EmailDomain)
	if c.EmailDomain != "" && !strings.HasPrefix(c.EmailDomain, "@") {
		c.EmailDomain = "@" + c.EmailDomain
	}
	c.Store.Type = strings.ToLower(strings.TrimSpace(c.Store.Type))
	if c.Store.Type == "" {
		c.Store.Type = StoreMemory
	}

	ids := c.AdminIDs[:0]
	for _, id := range c.AdminIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	c.AdminIDs = ids
}

// Validate rejects settings that can never work. Missing CloudMail
// credentials are not rejected here: they surface per command as a
// configuration-missing reply.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMemory, StoreSQLite:
	case StoreValkey:
		if c.Store.Valkey.URL == "" {
			return fmt.Errorf("store.valkey.url is required for the valkey store")
		}
	default:
		return fmt.Errorf("invalid store type %q, must be one of: memory, sqlite, valkey", c.Store.Type)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	return nil
}

// Missing lists the CloudMail settings that are still empty.
func (c *Config) Missing() []string {
	var missing []string
	if c.APIBaseURL == "" {
		missing = append(missing, "api_base_url")
	}
	if c.AdminEmail == "" {
		missing = append(missing, "admin_email")
	}
	if c.AdminPassword == "" {
		missing = append(missing, "admin_password")
	}
	return missing
}

// IsAdmin reports whether userID is listed in admin_ids.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ResolvePassword fills an empty AdminPassword from lookup, typically the
// OS keyring. A lookup failure leaves the password empty.
func (c *Config) ResolvePassword(lookup func(key string) (string, error)) error {
	if c.AdminPassword != "" || lookup == nil {
		return nil
	}
	secret, err := lookup(PasswordCredentialKey)
	if err != nil {
		return err
	}
	c.AdminPassword = secret
	return nil
}

// PasswordCredentialKey is the keyring entry holding the admin password.
const PasswordCredentialKey = "admin_password"

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.AdminIDs = append([]string(nil), c.AdminIDs...)
	if out.AdminPassword != "" {
		out.AdminPassword = "********"
	}
	if out.Store.Valkey.Password != "" {
		out.Store.Valkey.Password = "********"
	}
	return out
}
