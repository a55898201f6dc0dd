package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/sidequest/internal/client/cli"
	"github.com/dmitrijs2005/sidequest/internal/client/config"
	"github.com/dmitrijs2005/sidequest/internal/logging"
)

// Set with -ldflags "-X main.buildVersion=...".
var (
	buildVersion = "N/A"
	buildDate    = "N/A"
)

func main() {
	fmt.Printf("SideQuest CLI %s (%s)\n", buildVersion, buildDate)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(os.Stderr, cfg.Level())
	logger.Debug(ctx, "config loaded", "config", cfg.String())

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx, os.Stdin)
}
