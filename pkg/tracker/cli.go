package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/timesbus/velio/pkg/database"
	"github.com/timesbus/velio/pkg/redis_client"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Poll realtime vehicle feeds and reconcile them into the database",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run trackers for all registered sources",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "source",
						Usage: "Only run the sources with these identifiers",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to Redis")
					}

					trackers, err := buildTrackers(c.StringSlice("source"))
					if err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(context.Background())

					var waitGroup conc.WaitGroup

					for _, tracker := range trackers {
						tracker := tracker
						waitGroup.Go(func() {
							tracker.Run(ctx)
						})
					}

					waitGroup.Go(func() {
						StartStatsServer(trackers)
					})

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					<-signals

					log.Info().Msg("Shutting down trackers")
					cancel()

					return nil
				},
			},
			{
				Name:  "single-pass",
				Usage: "run one pass of a source then exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Identifier of the source",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to Redis")
					}

					config, err := GetSource(c.String("source"))
					if err != nil {
						return err
					}

					tracker, err := NewTracker(config, NewMongoRepository())
					if err != nil {
						return err
					}

					stats, err := tracker.RunPass(context.Background())
					if err != nil {
						return err
					}

					pretty.Println(stats)

					return nil
				},
			},
			{
				Name:  "list-sources",
				Usage: "list all registered source definitions",
				Action: func(c *cli.Context) error {
					for _, config := range GetRegisteredSources() {
						fmt.Printf("%s (%s) %s\n", config.Identifier, config.Format, config.URL)
					}

					return nil
				},
			},
			{
				Name:  "test-match",
				Usage: "test schedule matching for a route, operator & trip code",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "route",
						Usage:    "Route name from the live feed",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "operator",
						Usage:    "Operator refs to search",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "trip",
						Usage: "Trip ticket machine code",
					},
					&cli.StringFlag{
						Name:  "stop",
						Usage: "Origin stop ref",
					},
					&cli.TimestampFlag{
						Name:   "departure",
						Usage:  "Departure time of the journey",
						Layout: "2006-01-02T15:04:05",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					matcher := Matcher{Repository: NewMongoRepository()}

					query := MatchQuery{
						RouteName:     c.String("route"),
						OperatorRefs:  c.StringSlice("operator"),
						TripCode:      c.String("trip"),
						OriginStopRef: c.String("stop"),
					}
					if departure := c.Timestamp("departure"); departure != nil {
						query.DepartureTime = *departure
					}

					result, err := matcher.Match(context.Background(), query)
					if err != nil {
						log.Error().Err(err).Msg("No match")
					}

					pretty.Println(result)

					return nil
				},
			},
		},
	}
}

func buildTrackers(onlySources []string) ([]*Tracker, error) {
	repository := NewMongoRepository()

	selected := map[string]bool{}
	for _, identifier := range onlySources {
		selected[identifier] = true
	}

	var trackers []*Tracker

	for _, config := range GetRegisteredSources() {
		if len(selected) > 0 && !selected[config.Identifier] {
			continue
		}

		tracker, err := NewTracker(config, repository)
		if err != nil {
			return nil, err
		}

		trackers = append(trackers, tracker)
	}

	if len(trackers) == 0 {
		return nil, errors.New("no sources matched")
	}

	return trackers, nil
}
