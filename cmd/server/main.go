package main

import (
	approuters "Promo/internal/app_routers"
	"Promo/internal/configuration"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	app := &cli.Command{
		Name:  "promo-server",
		Usage: "Real-time chat server for businesses and influencers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (.json, .yaml)",
				Sources:     cli.EnvVars("PROMO_CONFIG"),
				Value:       "config/config.dev.yaml",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars(configuration.EnvLogLevel),
				Destination: &logLevel,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			config, err := configuration.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				config.Log.Level = logLevel
			}

			container, err := configuration.BuildContainer(ctx, config)
			if err != nil {
				return fmt.Errorf("build container: %w", err)
			}
			// Ensure cleanup on shutdown
			defer container.Close()

			return approuters.StartServer(ctx, container)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("promo-server: %v", err)
	}
}
