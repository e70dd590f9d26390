package fleet

import (
	"fmt"
	"time"
)

const JourneyIDFormat = "JOURNEY:%s:%s" // vehicle identifier, journey code

// DirectionMaxLength bounds the short direction code carried on a journey.
const DirectionMaxLength = 8

// VehicleJourney is one continuous run of a vehicle along a route. At most
// one journey exists per (vehicle, departure bucket) for time-bucketed
// sources, and per (vehicle, code) for sources with explicit trip codes.
type VehicleJourney struct {
	PrimaryIdentifier string `bson:"primaryidentifier"`

	VehicleRef string `bson:"vehicleref"`

	DepartureTime time.Time `bson:"departuretime"`

	Code        string `bson:"code,omitempty"`
	RouteName   string `bson:"routename,omitempty"`
	Direction   string `bson:"direction,omitempty"`
	Destination string `bson:"destination,omitempty"`
	Block       string `bson:"block,omitempty"`

	ServiceRef string `bson:"serviceref,omitempty"`
	TripRef    string `bson:"tripref,omitempty"`

	DataSource *DataSource `bson:"datasource,omitempty"`

	CreationDateTime     time.Time `bson:"creationdatetime"`
	ModificationDateTime time.Time `bson:"modificationdatetime"`
}

func JourneyIdentifier(vehicleRef string, code string) string {
	return fmt.Sprintf(JourneyIDFormat, vehicleRef, code)
}

// TruncateDirection bounds a feed-supplied direction to the stored length.
func TruncateDirection(direction string) string {
	if len(direction) > DirectionMaxLength {
		return direction[:DirectionMaxLength]
	}
	return direction
}
