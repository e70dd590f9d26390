package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
)

// Journey continuity modes. They decide when two reports from the same
// vehicle belong to the same journey.
const (
	ContinuityTimeBucketed   = "time-bucketed"
	ContinuityExplicitCode   = "explicit-code"
	ContinuityScheduleWindow = "schedule-window"
)

const defaultBucketInterval = 24 * time.Hour
const defaultReattachTolerance = 60 * time.Second

// ContinuityStrategy configures how a source groups reports into journeys.
type ContinuityStrategy struct {
	Mode string

	// BucketInterval applies to time-bucketed sources. It must divide 24
	// hours evenly.
	BucketInterval time.Duration

	// ReattachTolerance applies to schedule-window sources: a report whose
	// departure time is within the tolerance of the vehicle's latest
	// journey reattaches to it.
	ReattachTolerance time.Duration
}

// JourneyResolver maps journey descriptors onto persistent VehicleJourney
// records, reusing an existing journey wherever the continuity strategy
// allows and creating one otherwise.
type JourneyResolver struct {
	Repository Repository
	Strategy   ContinuityStrategy

	DataSource *fleet.DataSource

	// Matcher links newly created journeys to scheduled services and trips
	// when set.
	Matcher       *Matcher
	ScheduleMatch bool
	OperatorRefs  []string
}

// Resolve returns the journey a report belongs to. The second return
// reports whether the vehicle's latest journey changed.
func (r *JourneyResolver) Resolve(ctx context.Context, descriptor feeds.JourneyDescriptor, vehicle *fleet.Vehicle, recordedAt time.Time) (*fleet.VehicleJourney, bool, error) {
	var journey *fleet.VehicleJourney
	var err error

	switch r.Strategy.Mode {
	case ContinuityExplicitCode:
		journey, err = r.resolveExplicitCode(ctx, descriptor, vehicle)
	case ContinuityScheduleWindow:
		journey, err = r.resolveScheduleWindow(ctx, descriptor, vehicle, recordedAt)
	default:
		journey, err = r.resolveTimeBucketed(ctx, descriptor, vehicle, recordedAt)
	}

	if err != nil {
		return nil, false, err
	}

	changed := journey.PrimaryIdentifier != vehicle.LatestJourneyRef

	return journey, changed, nil
}

// resolveTimeBucketed floors the report time to the bucket interval. All
// reports inside one bucket share one journey.
func (r *JourneyResolver) resolveTimeBucketed(ctx context.Context, descriptor feeds.JourneyDescriptor, vehicle *fleet.Vehicle, recordedAt time.Time) (*fleet.VehicleJourney, error) {
	interval := r.Strategy.BucketInterval
	if interval == 0 {
		interval = defaultBucketInterval
	}

	bucketStart := recordedAt.UTC().Truncate(interval)

	if latest := r.latestJourney(ctx, vehicle); latest != nil {
		if latest.DepartureTime.Equal(bucketStart) && latest.RouteName == descriptor.RouteName {
			r.backfill(ctx, latest, descriptor)
			return latest, nil
		}
	}

	existing, err := r.Repository.JourneyByDeparture(ctx, vehicle.PrimaryIdentifier, bucketStart, descriptor.RouteName)
	if err == nil {
		r.backfill(ctx, existing, descriptor)
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	journey := r.newJourney(descriptor, vehicle, bucketStart)
	journey.Code = fmt.Sprintf("%s-%s", vehicle.Code, bucketStart.Format("20060102"))
	journey.PrimaryIdentifier = fleet.JourneyIdentifier(vehicle.PrimaryIdentifier, bucketStart.Format("20060102150405"))

	return r.createJourney(ctx, journey, vehicle, recordedAt)
}

// resolveExplicitCode trusts the feed's journey code. When the code matches
// the vehicle's latest journey no lookup is needed at all.
func (r *JourneyResolver) resolveExplicitCode(ctx context.Context, descriptor feeds.JourneyDescriptor, vehicle *fleet.Vehicle) (*fleet.VehicleJourney, error) {
	if descriptor.Code == "" {
		return nil, fmt.Errorf("descriptor has no journey code")
	}

	if vehicle.LatestJourneyCode == descriptor.Code && vehicle.LatestJourneyRef != "" {
		if latest := r.latestJourney(ctx, vehicle); latest != nil {
			return latest, nil
		}
	}

	existing, err := r.Repository.JourneyByCode(ctx, vehicle.PrimaryIdentifier, descriptor.Code)
	if err == nil {
		r.backfill(ctx, existing, descriptor)
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	departureTime := time.Now().UTC()
	if descriptor.DepartureTime != nil {
		departureTime = *descriptor.DepartureTime
	}

	journey := r.newJourney(descriptor, vehicle, departureTime)
	journey.PrimaryIdentifier = fleet.JourneyIdentifier(vehicle.PrimaryIdentifier, descriptor.Code)

	return r.createJourney(ctx, journey, vehicle, departureTime)
}

// resolveScheduleWindow attaches reports to journeys by departure time. A
// departure within the reattach tolerance of the latest journey is treated
// as the same journey restated with jitter.
func (r *JourneyResolver) resolveScheduleWindow(ctx context.Context, descriptor feeds.JourneyDescriptor, vehicle *fleet.Vehicle, recordedAt time.Time) (*fleet.VehicleJourney, error) {
	tolerance := r.Strategy.ReattachTolerance
	if tolerance == 0 {
		tolerance = defaultReattachTolerance
	}

	latest := r.latestJourney(ctx, vehicle)

	departureTime := descriptor.DepartureTime

	if departureTime != nil {
		if latest != nil {
			delta := latest.DepartureTime.Sub(*departureTime)
			if delta < 0 {
				delta = -delta
			}
			if delta < tolerance {
				r.backfill(ctx, latest, descriptor)
				r.rematchSchedule(ctx, latest, descriptor, vehicle)
				return latest, nil
			}
		}

		existing, err := r.Repository.JourneyByDeparture(ctx, vehicle.PrimaryIdentifier, *departureTime, "")
		if err == nil {
			r.backfill(ctx, existing, descriptor)
			r.rematchSchedule(ctx, existing, descriptor, vehicle)
			return existing, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	} else if descriptor.ExpectedDeparture != nil {
		departureTime = descriptor.ExpectedDeparture
	}

	// Without any departure time, keep the latest journey going as long as
	// the route matches, it started today, and the report does not name a
	// different journey code
	if departureTime == nil && latest != nil &&
		(descriptor.Code == "" || descriptor.Code == latest.Code) &&
		latest.RouteName == descriptor.RouteName &&
		sameDay(latest.DepartureTime, recordedAt) {
		r.backfill(ctx, latest, descriptor)
		r.rematchSchedule(ctx, latest, descriptor, vehicle)
		return latest, nil
	}

	journeyStart := recordedAt.UTC()
	if departureTime != nil {
		journeyStart = *departureTime
	}

	journey := r.newJourney(descriptor, vehicle, journeyStart)
	if descriptor.Code != "" {
		journey.Code = descriptor.Code
	}
	journey.PrimaryIdentifier = fleet.JourneyIdentifier(vehicle.PrimaryIdentifier, journeyStart.UTC().Format("20060102150405"))

	if r.ScheduleMatch && r.Matcher != nil {
		r.matchSchedule(ctx, journey, descriptor, vehicle, journeyStart)
	}

	return r.createJourney(ctx, journey, vehicle, recordedAt)
}

func (r *JourneyResolver) newJourney(descriptor feeds.JourneyDescriptor, vehicle *fleet.Vehicle, departureTime time.Time) *fleet.VehicleJourney {
	return &fleet.VehicleJourney{
		VehicleRef:    vehicle.PrimaryIdentifier,
		DepartureTime: departureTime,
		Code:          descriptor.Code,
		RouteName:     descriptor.RouteName,
		Direction:     fleet.TruncateDirection(descriptor.Direction),
		Destination:   descriptor.Destination,
		Block:         descriptor.Block,
		DataSource:    r.DataSource,
	}
}

func (r *JourneyResolver) createJourney(ctx context.Context, journey *fleet.VehicleJourney, vehicle *fleet.Vehicle, recordedAt time.Time) (*fleet.VehicleJourney, error) {
	created, err := r.Repository.CreateJourney(ctx, journey)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("journey", created.PrimaryIdentifier).
		Str("route", created.RouteName).
		Msg("Created journey")

	return created, nil
}

func (r *JourneyResolver) latestJourney(ctx context.Context, vehicle *fleet.Vehicle) *fleet.VehicleJourney {
	if vehicle.LatestJourneyRef == "" {
		return nil
	}

	journey, err := r.Repository.JourneyByIdentifier(ctx, vehicle.LatestJourneyRef)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("journey", vehicle.LatestJourneyRef).Msg("Failed to load latest journey")
		}
		return nil
	}

	return journey
}

// backfill fills journey fields the feed now reports but earlier reports
// left empty. Populated fields are never replaced.
func (r *JourneyResolver) backfill(ctx context.Context, journey *fleet.VehicleJourney, descriptor feeds.JourneyDescriptor) {
	fields := map[string]interface{}{}

	if journey.Destination == "" && descriptor.Destination != "" {
		fields["destination"] = descriptor.Destination
		journey.Destination = descriptor.Destination
	}
	if journey.Direction == "" && descriptor.Direction != "" {
		direction := fleet.TruncateDirection(descriptor.Direction)
		fields["direction"] = direction
		journey.Direction = direction
	}
	if journey.Block == "" && descriptor.Block != "" {
		fields["block"] = descriptor.Block
		journey.Block = descriptor.Block
	}

	if len(fields) == 0 {
		return
	}

	if err := r.Repository.UpdateJourney(ctx, journey.PrimaryIdentifier, fields); err != nil {
		log.Error().Err(err).Str("journey", journey.PrimaryIdentifier).Msg("Failed to backfill journey")
	}
}

// rematchSchedule retries the schedule match for a reused journey that
// never linked to a service, and persists the outcome. A journey created
// before the schedule data existed picks its service up here.
func (r *JourneyResolver) rematchSchedule(ctx context.Context, journey *fleet.VehicleJourney, descriptor feeds.JourneyDescriptor, vehicle *fleet.Vehicle) {
	if !r.ScheduleMatch || r.Matcher == nil || journey.ServiceRef != "" {
		return
	}

	destinationBefore := journey.Destination

	r.matchSchedule(ctx, journey, descriptor, vehicle, journey.DepartureTime)

	fields := map[string]interface{}{}
	if journey.ServiceRef != "" {
		fields["serviceref"] = journey.ServiceRef
	}
	if journey.TripRef != "" {
		fields["tripref"] = journey.TripRef
	}
	if journey.Destination != destinationBefore {
		fields["destination"] = journey.Destination
	}

	if len(fields) == 0 {
		return
	}

	if err := r.Repository.UpdateJourney(ctx, journey.PrimaryIdentifier, fields); err != nil {
		log.Error().Err(err).Str("journey", journey.PrimaryIdentifier).Msg("Failed to store journey schedule match")
	}
}

func (r *JourneyResolver) matchSchedule(ctx context.Context, journey *fleet.VehicleJourney, descriptor feeds.JourneyDescriptor, vehicle *fleet.Vehicle, departureTime time.Time) {
	result, err := r.Matcher.Match(ctx, MatchQuery{
		RouteName:          descriptor.RouteName,
		OperatorRefs:       r.OperatorRefs,
		OriginStopRef:      descriptor.OriginStopRef,
		DestinationStopRef: descriptor.DestinationStopRef,
		TripCode:           descriptor.Code,
		DepartureTime:      departureTime,
	})
	if err != nil {
		log.Debug().Err(err).
			Str("vehicle", vehicle.PrimaryIdentifier).
			Str("route", descriptor.RouteName).
			Msg("Journey did not match a scheduled trip")
	}
	// A failed trip match can still carry a matched service
	if result == nil {
		return
	}

	if result.Service != nil {
		journey.ServiceRef = result.Service.PrimaryIdentifier
		if journey.RouteName == "" {
			journey.RouteName = result.Service.ServiceName
		}
	}

	if result.Trip != nil {
		journey.TripRef = result.Trip.PrimaryIdentifier
		if journey.Destination == "" && result.Trip.DestinationDisplay != "" {
			journey.Destination = result.Trip.DestinationDisplay
		}

		// A matched trip can supply the operator for vehicles the feed
		// reports without one
		if result.Trip.OperatorRef != "" && vehicle.OperatorRef == "" && !vehicle.Locked {
			if err := r.Repository.UpdateVehicle(ctx, vehicle.PrimaryIdentifier, map[string]interface{}{
				"operatorref": result.Trip.OperatorRef,
			}); err == nil {
				vehicle.OperatorRef = result.Trip.OperatorRef
			}
		}
	}
}

func sameDay(a time.Time, b time.Time) bool {
	aYear, aMonth, aDay := a.UTC().Date()
	bYear, bMonth, bDay := b.UTC().Date()
	return aYear == bYear && aMonth == bMonth && aDay == bDay
}
