// Package config provides configuration management for anchorplay using
// Viper for loading from files, environment variables and command-line
// flags.
//
// The configuration covers the template store location and document names,
// the HTTP server, the listing cache and the logger. Environment variables
// use the ANCHORPLAY_ prefix, e.g. ANCHORPLAY_STORE_ROOT.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type StoreConfig struct {
	// Root is resolved to an absolute path by Load
	Root                   string `mapstructure:"root" yaml:"root"`
	ExplanationsFile       string `mapstructure:"explanations_file" yaml:"explanations_file"`
	LegacyExplanationsFile string `mapstructure:"legacy_explanations_file" yaml:"legacy_explanations_file"`
	AllowComments          bool   `mapstructure:"allow_comments" yaml:"allow_comments"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type CacheConfig struct {
	ListTTL  time.Duration `mapstructure:"list_ttl" yaml:"list_ttl"`
	Watch    bool          `mapstructure:"watch" yaml:"watch"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Address returns the host:port the server listens on.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.root", "./templates")
	v.SetDefault("store.explanations_file", "line-explanations.json")
	v.SetDefault("store.legacy_explanations_file", "explanations.json")
	v.SetDefault("store.allow_comments", false)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("cache.list_ttl", 30*time.Second)
	v.SetDefault("cache.watch", true)
	v.SetDefault("cache.debounce", 300*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, normalizes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	// Handle allowed origins given as a comma separated env value
	if len(config.Server.AllowedOrigins) == 0 && v.IsSet("server.allowed_origins") {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	// The root is resolved once so later working directory changes do not
	// move the store.
	root, err := filepath.Abs(config.Store.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root %q: %w", config.Store.Root, err)
	}
	config.Store.Root = root

	result := ValidateConfigWithDetails(&config)
	if result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}

	return &config, nil
}
