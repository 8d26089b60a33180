package config

import (
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/thunder/internal/backup"
	"github.com/dmitrijs2005/thunder/internal/filex"
	"github.com/dmitrijs2005/thunder/internal/steam/community"
)

const (
	appName       = "thunder"
	vaultFileName = "config.vault"
)

type Config struct {
	VaultPath        string
	CommunityBaseURL string
	HTTPTimeout      time.Duration
	RenewGracePeriod time.Duration
	UnlockBurst      int
	UnlockInterval   time.Duration
	LogLevel         string
	Backup           backup.Config
}

// ensureConfigDir is a test seam.
var ensureConfigDir = filex.EnsureConfigDir

func (c *Config) LoadDefaults() {
	c.VaultPath = vaultFileName
	if dir, err := ensureConfigDir(appName); err == nil {
		c.VaultPath = filepath.Join(dir, vaultFileName)
	}
	c.CommunityBaseURL = community.DefaultBaseURL
	c.HTTPTimeout = 15 * time.Second
	c.RenewGracePeriod = time.Second
	c.UnlockBurst = 5
	c.UnlockInterval = 2 * time.Second
	c.LogLevel = "info"
	c.Backup = backup.Config{}
}

// LoadConfig applies defaults, then the JSON or TOML file, then flags from args
// (normally os.Args[1:]). Malformed input panics.
func LoadConfig(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
