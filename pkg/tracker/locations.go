package tracker

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
)

// BuildLocation validates a reported position and turns it into a location
// record. It returns nil for items with no usable position; vehicle and
// journey records still update in that case, only the location is skipped.
func BuildLocation(descriptor *feeds.LocationDescriptor, vehicle *fleet.Vehicle, journey *fleet.VehicleJourney, recordedAt time.Time) *fleet.VehicleLocation {
	if descriptor == nil {
		return nil
	}

	if !validCoordinates(descriptor.Longitude, descriptor.Latitude) {
		log.Debug().
			Str("vehicle", vehicle.PrimaryIdentifier).
			Float64("longitude", descriptor.Longitude).
			Float64("latitude", descriptor.Latitude).
			Msg("Skipping location with invalid coordinates")
		return nil
	}

	return &fleet.VehicleLocation{
		VehicleRef:       vehicle.PrimaryIdentifier,
		JourneyRef:       journey.PrimaryIdentifier,
		Location:         fleet.NewPoint(descriptor.Longitude, descriptor.Latitude),
		Heading:          descriptor.Heading,
		RecordedAt:       recordedAt,
		CreationDateTime: time.Now(),
	}
}

func validCoordinates(longitude float64, latitude float64) bool {
	if math.IsNaN(longitude) || math.IsNaN(latitude) {
		return false
	}
	if longitude < -180 || longitude > 180 {
		return false
	}
	if latitude < -90 || latitude > 90 {
		return false
	}
	return true
}
