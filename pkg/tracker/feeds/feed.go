package feeds

import (
	"context"
	"time"
)

// Item is a single vehicle report pulled out of a feed payload. Each
// adapter defines its own concrete item type.
type Item any

// Feed is implemented by each upstream source format. A Feed knows how to
// fetch its payload and how to describe each item in it, but has no
// knowledge of vehicles, journeys, or storage.
type Feed interface {
	SourceName() string

	// Fetch retrieves the current payload and splits it into items.
	Fetch(ctx context.Context) ([]Item, error)

	// ItemTimestamp returns when the item was recorded upstream.
	ItemTimestamp(item Item) time.Time

	// ItemVehicleKey returns the source-scoped vehicle code for the item.
	ItemVehicleKey(item Item) (string, error)

	// Fingerprint returns a stable digest of the item's observable state.
	// Two items with the same fingerprint represent no meaningful change.
	Fingerprint(item Item) string

	DescribeVehicle(item Item) VehicleDescriptor
	DescribeJourney(item Item) JourneyDescriptor
	DescribeLocation(item Item) *LocationDescriptor
}

// VehicleDescriptor carries the vehicle metadata a feed item exposes.
// Empty fields mean the feed does not report that attribute.
type VehicleDescriptor struct {
	Code        string
	FleetCode   string
	FleetNumber string
	Reg         string
	Name        string
	OperatorRef string

	RawPayload []byte
}

// JourneyDescriptor carries the journey attributes a feed item exposes.
type JourneyDescriptor struct {
	Code        string
	RouteName   string
	Direction   string
	Destination string
	Block       string

	DepartureTime     *time.Time
	ExpectedDeparture *time.Time

	OriginStopRef      string
	DestinationStopRef string
}

// LocationDescriptor is a raw reported position. A nil descriptor means
// the item carried no position at all.
type LocationDescriptor struct {
	Longitude float64
	Latitude  float64
	Heading   *float64
}
