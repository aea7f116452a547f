// Command server runs the plate analysis HTTP service.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"plate-reader/internal/config"
	"plate-reader/internal/logging"
	"plate-reader/internal/server"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.Server.Mode); err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	zap.L().Info("starting server",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("output_dir", cfg.Output.Dir))

	if err := server.New(cfg).Run(); err != nil {
		zap.L().Fatal("server exited", zap.Error(err))
	}
}
