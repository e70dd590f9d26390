package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
)

// PassStats summarises one polling pass over a source.
type PassStats struct {
	StartedAt time.Time
	Duration  time.Duration

	ItemsFetched    int
	ItemsFiltered   int
	ItemsUnchanged  int
	ItemsProcessed  int
	ItemsFailed     int
	VehiclesCreated int
	JourneysStarted int
	LocationsStored int
}

// Tracker runs the reconciliation pipeline for one source: fetch the feed,
// drop unchanged items, then resolve each remaining item into vehicle,
// journey, and location records.
type Tracker struct {
	Feed           feeds.Feed
	Repository     Repository
	ChangeDetector ChangeDetector

	RefreshRate time.Duration

	DefaultOperatorRef string
	DefaultOperatorName string
	OperatorGroupRef   string

	Filter *vm.Program

	ScheduleMatch bool
	Strategy      ContinuityStrategy
	DataSource    *fleet.DataSource

	ElasticEvents bool

	source          *fleet.Source
	vehicleResolver *VehicleResolver
	journeyResolver *JourneyResolver

	lastPassMutex sync.Mutex
	lastPass      *PassStats
}

// LastPassStats returns the statistics of the most recent completed pass.
// The stats server reads this while the tracker goroutine is running.
func (t *Tracker) LastPassStats() *PassStats {
	t.lastPassMutex.Lock()
	defer t.lastPassMutex.Unlock()
	return t.lastPass
}

// Run polls the source until the context is cancelled, spacing passes so
// they start RefreshRate apart regardless of how long each takes.
func (t *Tracker) Run(ctx context.Context) {
	log.Info().Str("source", t.Feed.SourceName()).Msg("Registering source")

	for {
		if ctx.Err() != nil {
			return
		}

		startTime := time.Now()

		if _, err := t.RunPass(ctx); err != nil {
			log.Error().Err(err).Str("source", t.Feed.SourceName()).Msg("Pass failed")
		}

		executionDuration := time.Since(startTime)
		waitTime := t.RefreshRate - executionDuration

		if waitTime <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(waitTime):
		}
	}
}

// RunPass performs a single fetch-and-reconcile pass. One failing item
// never aborts the rest of the pass.
func (t *Tracker) RunPass(ctx context.Context) (*PassStats, error) {
	stats := &PassStats{StartedAt: time.Now()}

	if err := t.setup(ctx); err != nil {
		return nil, err
	}

	items, err := t.Feed.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	stats.ItemsFetched = len(items)

	if err := t.Repository.UpdateSourceFetched(ctx, t.source.Name, time.Now()); err != nil {
		log.Error().Err(err).Str("source", t.source.Name).Msg("Failed to record fetch time")
	}

	candidates, vehicleCodes := t.filterItems(ctx, items, stats)

	if err := t.vehicleResolver.Prefetch(ctx, vehicleCodes); err != nil {
		return nil, err
	}

	var locations []*fleet.VehicleLocation

	for i, item := range candidates {
		if ctx.Err() != nil {
			break
		}

		location, err := t.processItem(ctx, item, stats)
		if err != nil {
			stats.ItemsFailed++
			log.Error().Err(err).
				Str("source", t.source.Name).
				Str("vehicle", vehicleCodes[i]).
				Msg("Failed to process item")
			continue
		}

		stats.ItemsProcessed++

		if location != nil {
			locations = append(locations, location)
		}
	}

	if err := t.Repository.CreateLocations(ctx, locations); err != nil {
		return nil, err
	}
	stats.LocationsStored = len(locations)

	stats.Duration = time.Since(stats.StartedAt)

	t.lastPassMutex.Lock()
	t.lastPass = stats
	t.lastPassMutex.Unlock()

	log.Info().
		Str("source", t.source.Name).
		Int("fetched", stats.ItemsFetched).
		Int("processed", stats.ItemsProcessed).
		Int("locations", stats.LocationsStored).
		Str("duration", stats.Duration.String()).
		Msg("Completed pass")

	return stats, nil
}

// setup lazily creates the source and operator records on the first pass.
func (t *Tracker) setup(ctx context.Context) error {
	if t.source != nil {
		return nil
	}

	source, err := t.Repository.GetOrCreateSource(ctx, t.Feed.SourceName(), "")
	if err != nil {
		return err
	}
	t.source = source

	var defaultOperator *fleet.Operator
	if t.DefaultOperatorRef != "" {
		name := t.DefaultOperatorName
		if name == "" {
			name = t.DefaultOperatorRef
		}
		defaultOperator, err = t.Repository.GetOrCreateOperator(ctx, fleet.OperatorIdentifier(t.DefaultOperatorRef), name)
		if err != nil {
			return err
		}
	}

	groupOperators := map[string]*fleet.Operator{}
	if t.OperatorGroupRef != "" {
		operators, err := t.Repository.OperatorsInGroup(ctx, t.OperatorGroupRef)
		if err != nil {
			return err
		}
		for _, operator := range operators {
			groupOperators[operator.PrimaryIdentifier] = operator
		}
	}

	t.vehicleResolver = NewVehicleResolver(t.Repository, source, defaultOperator, groupOperators)

	operatorRefs := make([]string, 0, len(groupOperators)+1)
	for ref := range groupOperators {
		operatorRefs = append(operatorRefs, ref)
	}
	if defaultOperator != nil && len(operatorRefs) == 0 {
		operatorRefs = append(operatorRefs, defaultOperator.PrimaryIdentifier)
		operatorRefs = append(operatorRefs, defaultOperator.OtherIdentifiers...)
	}

	var matcher *Matcher
	if t.ScheduleMatch {
		matcher = &Matcher{Repository: t.Repository}
		if t.ElasticEvents {
			matcher.Events = &EventRecorder{SourceName: source.Name}
		}
	}

	t.journeyResolver = &JourneyResolver{
		Repository:    t.Repository,
		Strategy:      t.Strategy,
		DataSource:    t.DataSource,
		Matcher:       matcher,
		ScheduleMatch: t.ScheduleMatch,
		OperatorRefs:  operatorRefs,
	}

	return nil
}

// filterItems drops items the source filter rejects and items whose
// fingerprint is unchanged since the last pass.
func (t *Tracker) filterItems(ctx context.Context, items []feeds.Item, stats *PassStats) ([]feeds.Item, []string) {
	var candidates []feeds.Item
	var vehicleCodes []string

	for _, item := range items {
		key, err := t.Feed.ItemVehicleKey(item)
		if err != nil {
			stats.ItemsFiltered++
			log.Debug().Err(err).Str("source", t.source.Name).Msg("Skipping unkeyable item")
			continue
		}

		if !t.runFilter(item) {
			stats.ItemsFiltered++
			continue
		}

		if !t.ChangeDetector.ShouldProcess(ctx, key, t.Feed.Fingerprint(item)) {
			stats.ItemsUnchanged++
			continue
		}

		candidates = append(candidates, item)
		vehicleCodes = append(vehicleCodes, key)
	}

	return candidates, vehicleCodes
}

func (t *Tracker) runFilter(item feeds.Item) bool {
	if t.Filter == nil {
		return true
	}

	output, err := expr.Run(t.Filter, map[string]interface{}{
		"item": item,
	})
	if err != nil {
		log.Debug().Err(err).Str("source", t.Feed.SourceName()).Msg("Filter expression failed")
		return true
	}

	keep, ok := output.(bool)
	if !ok {
		return true
	}

	return keep
}

func (t *Tracker) processItem(ctx context.Context, item feeds.Item, stats *PassStats) (*fleet.VehicleLocation, error) {
	recordedAt := t.Feed.ItemTimestamp(item)

	vehicleDescriptor := t.Feed.DescribeVehicle(item)

	vehicle, vehicleCreated, err := t.vehicleResolver.Resolve(ctx, vehicleDescriptor)
	if err != nil {
		return nil, err
	}
	if vehicleCreated {
		stats.VehiclesCreated++
	}

	journeyDescriptor := t.Feed.DescribeJourney(item)

	journey, journeyChanged, err := t.journeyResolver.Resolve(ctx, journeyDescriptor, vehicle, recordedAt)
	if err != nil {
		return nil, err
	}

	if journeyChanged {
		stats.JourneysStarted++

		fields := map[string]interface{}{
			"latestjourneyref":  journey.PrimaryIdentifier,
			"latestjourneycode": journey.Code,
		}
		if vehicleDescriptor.RawPayload != nil {
			fields["latestjourneydata"] = vehicleDescriptor.RawPayload
		}

		if err := t.Repository.UpdateVehicle(ctx, vehicle.PrimaryIdentifier, fields); err != nil {
			return nil, err
		}

		vehicle.LatestJourneyRef = journey.PrimaryIdentifier
		vehicle.LatestJourneyCode = journey.Code
	}

	return BuildLocation(t.Feed.DescribeLocation(item), vehicle, journey, recordedAt), nil
}
