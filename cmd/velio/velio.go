package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/elastic_client"
	"github.com/timesbus/velio/pkg/tracker"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("VELIO_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("VELIO_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	if err := elastic_client.Connect(false); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Elasticsearch")
	}

	app := &cli.App{
		Name:        "velio",
		Description: "Live vehicle position reconciliation engine",

		Commands: []*cli.Command{
			tracker.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
