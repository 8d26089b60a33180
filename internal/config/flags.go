package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/thunder/internal/flagx"
)

func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-v", "-g", "-l"})

	fs := flag.NewFlagSet("thunder", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.VaultPath, "v", cfg.VaultPath, "path of the encrypted vault file")
	grace := fs.Int("g", int(cfg.RenewGracePeriod.Milliseconds()), "renewal grace period (ms)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RenewGracePeriod = time.Duration(*grace) * time.Millisecond
}
