package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/thunder/internal/buildinfo"
	"github.com/dmitrijs2005/thunder/internal/cli"
	"github.com/dmitrijs2005/thunder/internal/config"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/steam"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig(os.Args[1:])
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	// No CM logon transport ships with this build; commands that need a
	// fresh Steam login report it, everything else works offline.
	app := cli.NewApp(ctx, cfg, steam.Unavailable{}, logger)

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
