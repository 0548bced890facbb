package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hktransit/hktransit/pkg/api"
	"github.com/hktransit/hktransit/pkg/registry"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("HKTRANSIT_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("HKTRANSIT_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "hktransit",
		Description: "Hong Kong transit route registry - dataset loader, search and arrival times",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			registry.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
