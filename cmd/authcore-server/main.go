// Command authcore-server serves the authcore HTTP API.
//
// Configuration is read from the YAML file named by -config or
// AUTHCORE_CONFIG, then overridden by AUTHCORE_* environment variables.
// SMTP delivery is configured with SMTP_* variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func main() {
	path := flag.String("config", os.Getenv("AUTHCORE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(context.Background(), *path); err != nil {
		fmt.Fprintf(os.Stderr, "authcore-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	if cfg.Dev {
		logger.Warn().Msg("dev mode: missing keys are random and stores may be in-process")
	}

	rt, err := NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}
