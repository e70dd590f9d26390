package fleet

import "time"

// VehicleLocation is an immutable timestamped observation of a vehicle on a
// journey. Records are append-only; the engine never mutates or deletes them.
type VehicleLocation struct {
	VehicleRef string `bson:"vehicleref"`
	JourneyRef string `bson:"journeyref"`

	Location Location `bson:"location"`
	Heading  *float64 `bson:"heading,omitempty"`

	RecordedAt time.Time `bson:"recordedat"`

	CreationDateTime time.Time `bson:"creationdatetime"`
}
