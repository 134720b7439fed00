package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"chatterd/internal/app"
	"chatterd/pkg/banner"
	"chatterd/pkg/config"
	"chatterd/pkg/logger"
	"chatterd/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load(".env")

	addrFlag := flag.String("addr", "", "listen address (overrides config)")
	dbFlag := flag.String("db", "", "database path (overrides config)")
	cfgFlag := flag.String("config", "chatterd.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgFlag)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Flags win over env and config file.
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	if *dbFlag != "" {
		cfg.Server.DBPath = *dbFlag
	}

	logger.Init(cfg.Logging.Level)

	ver := version
	if commit != "none" {
		ver += " (" + commit + ")"
	}
	banner.Print(cfg.Server.Addr, cfg.Server.DBPath, ver)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := app.New(cfg).Run(ctx); err != nil {
		log.Fatalf("server exit: %v", err)
	}
	logger.Info("server_stopped")
}
