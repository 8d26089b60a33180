package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dmitrijs2005/thunder/internal/flagx"
	"github.com/dmitrijs2005/thunder/internal/timex"
)

// FileConfig is the on-disk shape, JSON or TOML; zero values mean "not set".
type FileConfig struct {
	VaultPath        string         `json:"vault_path" toml:"vault_path"`
	CommunityBaseURL string         `json:"community_base_url" toml:"community_base_url"`
	HTTPTimeout      timex.Duration `json:"http_timeout" toml:"http_timeout"`
	RenewGracePeriod timex.Duration `json:"renew_grace_period" toml:"renew_grace_period"`
	UnlockBurst      int            `json:"unlock_burst" toml:"unlock_burst"`
	UnlockInterval   timex.Duration `json:"unlock_interval" toml:"unlock_interval"`
	LogLevel         string         `json:"log_level" toml:"log_level"`
	Backup           struct {
		Bucket    string `json:"bucket" toml:"bucket"`
		Region    string `json:"region" toml:"region"`
		Endpoint  string `json:"endpoint" toml:"endpoint"`
		AccessKey string `json:"access_key" toml:"access_key"`
		SecretKey string `json:"secret_key" toml:"secret_key"`
	} `json:"backup" toml:"backup"`
}

// decodeFile picks the format from the extension; anything but .toml is JSON.
func decodeFile(path string, fc *FileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err = toml.Decode(string(data), fc)
		return err
	}
	return json.Unmarshal(data, fc)
}

func parseFile(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	var fc FileConfig
	if err := decodeFile(path, &fc); err != nil {
		panic(err)
	}

	setString(&cfg.VaultPath, fc.VaultPath)
	setString(&cfg.CommunityBaseURL, fc.CommunityBaseURL)
	setDuration(&cfg.HTTPTimeout, fc.HTTPTimeout)
	setDuration(&cfg.RenewGracePeriod, fc.RenewGracePeriod)
	if fc.UnlockBurst > 0 {
		cfg.UnlockBurst = fc.UnlockBurst
	}
	setDuration(&cfg.UnlockInterval, fc.UnlockInterval)
	setString(&cfg.LogLevel, fc.LogLevel)

	setString(&cfg.Backup.Bucket, fc.Backup.Bucket)
	setString(&cfg.Backup.Region, fc.Backup.Region)
	setString(&cfg.Backup.Endpoint, fc.Backup.Endpoint)
	setString(&cfg.Backup.AccessKey, fc.Backup.AccessKey)
	setString(&cfg.Backup.SecretKey, fc.Backup.SecretKey)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
