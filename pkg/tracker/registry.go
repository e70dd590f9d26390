package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
	"gopkg.in/yaml.v3"
)

// Source formats understood by the registry.
const (
	FormatGTFSRealtime = "gtfs-realtime"
	FormatGuernsey     = "guernsey-json"
	FormatIrishRail    = "irishrail-xml"
	FormatSpoorkaart   = "spoorkaart-geojson"
	FormatSatellites   = "satellites-json"
	FormatCelestrak    = "celestrak-tle"
	FormatUKTracking   = "uk-tracking-json"
)

// SourceConfig is one realtime source definition loaded from a YAML file
// under data/feeds/.
type SourceConfig struct {
	Identifier string `yaml:"identifier"`
	Name       string `yaml:"name"`
	Format     string `yaml:"format"`
	URL        string `yaml:"url"`

	Provider string `yaml:"provider"`
	Timezone string `yaml:"timezone"`

	Operator      string `yaml:"operator"`
	OperatorName  string `yaml:"operator_name"`
	OperatorGroup string `yaml:"operator_group"`

	Refresh Duration `yaml:"refresh"`
	Timeout Duration `yaml:"timeout"`

	Headers map[string]string `yaml:"headers"`

	Continuity struct {
		Mode              string   `yaml:"mode"`
		BucketInterval    Duration `yaml:"bucket_interval"`
		ReattachTolerance Duration `yaml:"reattach_tolerance"`
	} `yaml:"continuity"`

	// Dedupe selects the fingerprint store: memory (default) or redis.
	Dedupe           string   `yaml:"dedupe"`
	DedupeExpiration Duration `yaml:"dedupe_expiration"`

	// Filter is an expression over item deciding whether to process it,
	// for example `item.Heading != "0"`.
	Filter string `yaml:"filter"`

	ScheduleMatch bool `yaml:"schedule_match"`
	ElasticEvents bool `yaml:"elastic_events"`
}

// Duration wraps time.Duration with YAML unmarshalling from strings like
// "30s" or "6h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// GetRegisteredSources loads every source definition under data/feeds/.
func GetRegisteredSources() []SourceConfig {
	var configs []SourceConfig

	err := filepath.Walk("data/feeds/",
		func(path string, fileInfo os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if !fileInfo.IsDir() {
				log.Debug().Str("path", path).Msg("Loading source definition file")

				extension := filepath.Ext(path)

				if extension != ".yaml" {
					return nil
				}

				sourceYaml, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				decoder := yaml.NewDecoder(bytes.NewReader(sourceYaml))

				for {
					var config SourceConfig
					if decoder.Decode(&config) != nil {
						break
					}

					configs = append(configs, config)
				}
			}

			return nil
		})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load source definitions directory")
	}

	return configs
}

func GetSource(identifier string) (SourceConfig, error) {
	for _, config := range GetRegisteredSources() {
		if config.Identifier == identifier {
			return config, nil
		}
	}

	return SourceConfig{}, errors.New("source could not be found")
}

// NewTracker builds a Tracker from a source definition.
func NewTracker(config SourceConfig, repository Repository) (*Tracker, error) {
	feed, err := newFeed(config)
	if err != nil {
		return nil, err
	}

	refreshRate := time.Duration(config.Refresh)
	if refreshRate == 0 {
		refreshRate = 30 * time.Second
	}

	var changeDetector ChangeDetector
	switch config.Dedupe {
	case "", "memory":
		changeDetector = NewMemoryChangeDetector()
	case "redis":
		expiration := time.Duration(config.DedupeExpiration)
		if expiration == 0 {
			expiration = 24 * time.Hour
		}
		changeDetector = NewRedisChangeDetector(config.Name, expiration)
	default:
		return nil, fmt.Errorf("unrecognised dedupe store %s", config.Dedupe)
	}

	var filter *vm.Program
	if config.Filter != "" {
		filter, err = expr.Compile(config.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter for source %s: %w", config.Identifier, err)
		}
	}

	return &Tracker{
		Feed:           feed,
		Repository:     repository,
		ChangeDetector: changeDetector,

		RefreshRate: refreshRate,

		DefaultOperatorRef:  config.Operator,
		DefaultOperatorName: config.OperatorName,
		OperatorGroupRef:    config.OperatorGroup,

		Filter: filter,

		ScheduleMatch: config.ScheduleMatch,
		ElasticEvents: config.ElasticEvents,

		Strategy: ContinuityStrategy{
			Mode:              config.Continuity.Mode,
			BucketInterval:    time.Duration(config.Continuity.BucketInterval),
			ReattachTolerance: time.Duration(config.Continuity.ReattachTolerance),
		},

		DataSource: &fleet.DataSource{
			OriginalFormat: config.Format,
			Provider:       config.Provider,
			Dataset:        config.Identifier,
			Identifier:     config.Name,
		},
	}, nil
}

func newFeed(config SourceConfig) (feeds.Feed, error) {
	timeout := time.Duration(config.Timeout)

	// Definitions may reference credentials as ${VAR}
	config.URL = os.ExpandEnv(config.URL)
	for key, value := range config.Headers {
		config.Headers[key] = os.ExpandEnv(value)
	}

	switch config.Format {
	case FormatGTFSRealtime:
		return feeds.NewGTFSRealtimeFeed(config.Name, config.URL, config.Headers, timeout, config.Timezone)
	case FormatGuernsey:
		return &feeds.GuernseyFeed{Name: config.Name, URL: config.URL, Headers: config.Headers, Timeout: timeout}, nil
	case FormatIrishRail:
		return &feeds.IrishRailFeed{Name: config.Name, URL: config.URL, Headers: config.Headers, Timeout: timeout}, nil
	case FormatSpoorkaart:
		return &feeds.SpoorkaartFeed{Name: config.Name, URL: config.URL, Headers: config.Headers, Timeout: timeout}, nil
	case FormatSatellites:
		return &feeds.SatellitesFeed{Name: config.Name, URL: config.URL, Headers: config.Headers, Timeout: timeout}, nil
	case FormatCelestrak:
		return &feeds.CelestrakFeed{Name: config.Name, URL: config.URL, Headers: config.Headers, Timeout: timeout}, nil
	case FormatUKTracking:
		return &feeds.UKTrackingFeed{Name: config.Name, URL: config.URL, Headers: config.Headers, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unrecognised source format %s", config.Format)
	}
}
