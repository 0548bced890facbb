package registry

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hktransit/hktransit/pkg/config"
	"github.com/hktransit/hktransit/pkg/storage"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "dataset",
		Usage: "Manage the cached route dataset",
		Subcommands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "download the route dataset and store it locally",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to the configuration file",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					store, err := storage.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database, "hktransit")
					if err != nil {
						return err
					}
					defer store.Close()

					ctx := context.Background()
					fetcher := newDatasetFetcher(cfg.Data.ChecksumURL, cfg.Data.DataSheetURL, store)

					checksum, err := fetcher.RemoteChecksum(ctx)
					if err != nil {
						return err
					}

					payload, err := fetcher.FetchDataSheet(ctx)
					if err != nil {
						return err
					}

					sheet, err := decodeDataSheet(payload)
					if err != nil {
						return err
					}

					if err := fetcher.StoreDataSheet(ctx, payload, checksum); err != nil {
						return err
					}

					log.Info().
						Str("checksum", checksum).
						Int("routes", len(sheet.RouteList)).
						Int("stops", len(sheet.StopList)).
						Msg("Stored route dataset")

					return nil
				},
			},
			{
				Name:  "check",
				Usage: "compare the cached dataset checksum against the remote",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to the configuration file",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					store, err := storage.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database, "hktransit")
					if err != nil {
						return err
					}
					defer store.Close()

					ctx := context.Background()
					fetcher := newDatasetFetcher(cfg.Data.ChecksumURL, cfg.Data.DataSheetURL, store)

					remote, err := fetcher.RemoteChecksum(ctx)
					if err != nil {
						return err
					}

					_, cached, ok := fetcher.CachedDataSheet(ctx)
					if !ok {
						log.Info().Str("remote", remote).Msg("No cached dataset")
						return nil
					}

					if cached == remote {
						log.Info().Str("checksum", remote).Msg("Cached dataset is current")
					} else {
						log.Info().Str("cached", cached).Str("remote", remote).Msg("Cached dataset is stale")
					}

					return nil
				},
			},
		},
	}
}
