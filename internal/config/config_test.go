package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, values map[string]interface{}) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("store.root", t.TempDir())
	for key, value := range values {
		v.Set(key, value)
	}
	return v
}

func TestLoadFrom_Defaults(t *testing.T) {
	v := newViper(t, nil)

	config, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "line-explanations.json", config.Store.ExplanationsFile)
	assert.Equal(t, "explanations.json", config.Store.LegacyExplanationsFile)
	assert.False(t, config.Store.AllowComments)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 3000, config.Server.Port)
	assert.Empty(t, config.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Second, config.Cache.ListTTL)
	assert.True(t, config.Cache.Watch)
	assert.Equal(t, 300*time.Millisecond, config.Cache.Debounce)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, "localhost:3000", config.Server.Address())
}

func TestLoadFrom_ResolvesRootOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "templates"), 0o755))
	t.Chdir(dir)

	v := viper.New()
	v.Set("store.root", "templates")

	config, err := LoadFrom(v)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(config.Store.Root))
	assert.Equal(t, "templates", filepath.Base(config.Store.Root))

	// Moving elsewhere does not move the resolved root.
	t.Chdir(t.TempDir())
	assert.Equal(t, "templates", filepath.Base(config.Store.Root))
	info, err := os.Stat(config.Store.Root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadFrom_DurationStrings(t *testing.T) {
	v := newViper(t, map[string]interface{}{
		"cache.list_ttl": "1m",
		"cache.debounce": "50ms",
	})

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, config.Cache.ListTTL)
	assert.Equal(t, 50*time.Millisecond, config.Cache.Debounce)
}

func TestLoadFrom_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ANCHORPLAY_SERVER_PORT", "4123")
	t.Setenv("ANCHORPLAY_LOG_FORMAT", "json")
	t.Setenv("ANCHORPLAY_SERVER_ALLOWED_ORIGINS", "http://localhost:5173,https://play.example.com")

	v := newViper(t, nil)
	v.SetEnvPrefix("ANCHORPLAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4123, config.Server.Port)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, []string{"http://localhost:5173", "https://play.example.com"}, config.Server.AllowedOrigins)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		field  string
	}{
		{"port out of range", map[string]interface{}{"server.port": 70000}, "server.port"},
		{"explanations file with separator", map[string]interface{}{"store.explanations_file": "docs/x.json"}, "store.explanations_file"},
		{"legacy file traversal", map[string]interface{}{"store.legacy_explanations_file": "../x.json"}, "store.legacy_explanations_file"},
		{"negative ttl", map[string]interface{}{"cache.list_ttl": "-1s"}, "cache.list_ttl"},
		{"unknown log level", map[string]interface{}{"log.level": "loud"}, "log.level"},
		{"unknown log format", map[string]interface{}{"log.format": "xml"}, "log.format"},
		{"origin without scheme", map[string]interface{}{"server.allowed_origins": []string{"localhost:5173"}}, "server.allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadFrom(newViper(t, tt.values))
			require.Error(t, err)
			assert.Nil(t, config)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadFrom_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	v := viper.New()
	v.Set("store.root", file)

	_, err := LoadFrom(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestValidateConfigWithDetails_Warnings(t *testing.T) {
	config := &Config{
		Store: StoreConfig{
			Root:                   filepath.Join(t.TempDir(), "missing"),
			ExplanationsFile:       "line-explanations.json",
			LegacyExplanationsFile: "line-explanations.json",
		},
		Server: ServerConfig{Host: "localhost", Port: 80, AllowedOrigins: []string{"*"}},
		Cache:  CacheConfig{Watch: true},
		Log:    LogConfig{Level: "info", Format: "text"},
	}

	result := ValidateConfigWithDetails(config)
	assert.True(t, result.Valid)
	assert.False(t, result.HasErrors())
	require.True(t, result.HasWarnings())

	var fields []string
	for _, warning := range result.Warnings {
		fields = append(fields, warning.Field)
	}
	assert.ElementsMatch(t, []string{
		"store.root",
		"store.legacy_explanations_file",
		"server.port",
		"server.allowed_origins",
		"cache.debounce",
	}, fields)

	assert.Contains(t, result.String(), "Validation warnings")
	assert.NotContains(t, result.String(), "Validation errors")
}
