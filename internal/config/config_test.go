package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/thunder/internal/backup"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubConfigDir(t *testing.T, dir string, err error) {
	t.Helper()
	orig := ensureConfigDir
	ensureConfigDir = func(string) (string, error) { return dir, err }
	t.Cleanup(func() { ensureConfigDir = orig })
}

func defaults(vaultPath string) *Config {
	return &Config{
		VaultPath:        vaultPath,
		CommunityBaseURL: "https://steamcommunity.com",
		HTTPTimeout:      15 * time.Second,
		RenewGracePeriod: time.Second,
		UnlockBurst:      5,
		UnlockInterval:   2 * time.Second,
		LogLevel:         "info",
	}
}

func TestLoadDefaults(t *testing.T) {
	stubConfigDir(t, "/home/me/.config/thunder", nil)

	var c Config
	c.LoadDefaults()
	assert.Empty(t, cmp.Diff(defaults("/home/me/.config/thunder/config.vault"), &c))
}

func TestLoadDefaults_NoConfigDir(t *testing.T) {
	stubConfigDir(t, "", errors.New("no home"))

	var c Config
	c.LoadDefaults()
	assert.Equal(t, "config.vault", c.VaultPath)
}

func writeJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestParseFile(t *testing.T) {
	path := writeJSON(t, map[string]any{
		"vault_path":         "/tmp/x.vault",
		"http_timeout":       "3s",
		"renew_grace_period": 500000000,
		"unlock_burst":       3,
		"log_level":          "debug",
		"backup": map[string]any{
			"bucket":   "vaults",
			"endpoint": "http://127.0.0.1:9000",
		},
	})

	cfg := defaults("default.vault")
	parseFile(cfg, []string{"-config", path})

	want := defaults("/tmp/x.vault")
	want.HTTPTimeout = 3 * time.Second
	want.RenewGracePeriod = 500 * time.Millisecond
	want.UnlockBurst = 3
	want.LogLevel = "debug"
	want.Backup = backup.Config{Bucket: "vaults", Endpoint: "http://127.0.0.1:9000"}
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thunder.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
vault_path = "/srv/thunder.vault"
unlock_interval = "5s"
renew_grace_period = 250000000

[backup]
bucket = "vaults"
region = "eu-west-1"
`), 0o600))

	cfg := defaults("default.vault")
	parseFile(cfg, []string{"-c", path})

	want := defaults("/srv/thunder.vault")
	want.UnlockInterval = 5 * time.Second
	want.RenewGracePeriod = 250 * time.Millisecond
	want.Backup = backup.Config{Bucket: "vaults", Region: "eu-west-1"}
	assert.Empty(t, cmp.Diff(want, cfg))

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("vault_path = "), 0o600))
	assert.Panics(t, func() { parseFile(&Config{}, []string{"-c", bad}) })
}

func TestParseFile_NoFileNoChange(t *testing.T) {
	cfg := defaults("keep.vault")
	parseFile(cfg, []string{"-v", "other.vault"})
	assert.Empty(t, cmp.Diff(defaults("keep.vault"), cfg))
}

func TestParseFile_Panics(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{ not json`), 0o600))

	assert.Panics(t, func() { parseFile(&Config{}, []string{"-c", bad}) })
	assert.Panics(t, func() { parseFile(&Config{}, []string{"-c", bad + ".missing"}) })
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    *Config
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"-v", "/tmp/a.vault", "-g", "250", "-l", "warn", "-c", "ignored.json"},
			expected: func() *Config {
				c := defaults("/tmp/a.vault")
				c.RenewGracePeriod = 250 * time.Millisecond
				c.LogLevel = "warn"
				return c
			}(),
		},
		{name: "no flags", args: nil, expected: defaults("d.vault")},
		{name: "bad grace", args: []string{"-g", "abc"}, expectPanic: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults("d.vault")
			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg, tt.args) })
				return
			}
			require.NotPanics(t, func() { parseFlags(cfg, tt.args) })
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}

func TestLoadConfig_FlagsOverrideJson(t *testing.T) {
	stubConfigDir(t, t.TempDir(), nil)
	path := writeJSON(t, map[string]any{"vault_path": "/from/json.vault", "log_level": "debug"})

	cfg := LoadConfig([]string{"-c", path, "-v", "/from/flag.vault"})
	assert.Equal(t, "/from/flag.vault", cfg.VaultPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.RenewGracePeriod)
}
