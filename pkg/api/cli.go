package api

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hktransit/hktransit/pkg/config"
	"github.com/hktransit/hktransit/pkg/registry"
	"github.com/hktransit/hktransit/pkg/storage"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the registry web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to the configuration file",
					},
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if listen := c.String("listen"); listen != "" {
						cfg.Server.Listen = listen
					}

					store, err := openStore(cfg)
					if err != nil {
						return err
					}

					reg := registry.New(cfg, store)

					ctx := context.Background()
					if err := reg.Start(ctx); err != nil {
						log.Fatal().Err(err).Msg("Failed to load route dataset")
					}

					go reg.RunBackgroundRefresh(ctx)

					return SetupServer(reg, cfg.Server.Listen)
				},
			},
		},
	}
}

func openStore(cfg config.Config) (storage.Store, error) {
	if cfg.Redis.Address == "" {
		log.Info().Msg("No Redis address configured, using in-memory storage")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database, "hktransit")
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory storage")
		return storage.NewMemoryStore(), nil
	}

	return store, nil
}
