package fleet

import (
	"fmt"
	"time"
)

const VehicleIDFormat = "VEHICLE:%s:%s" // source identifier, vehicle code

// Vehicle is a physical tracked object (bus, train, satellite). Identity is
// keyed by (source, code); the same code under a different source is a
// different vehicle.
type Vehicle struct {
	PrimaryIdentifier string `bson:"primaryidentifier"`

	Code        string `bson:"code"`
	FleetCode   string `bson:"fleetcode,omitempty"`
	FleetNumber string `bson:"fleetnumber,omitempty"`
	Reg         string `bson:"reg,omitempty"`
	Name        string `bson:"name,omitempty"`

	OperatorRef string `bson:"operatorref,omitempty"`
	SourceRef   string `bson:"sourceref"`

	LatestJourneyRef  string `bson:"latestjourneyref,omitempty"`
	LatestJourneyCode string `bson:"latestjourneycode,omitempty"`
	LatestJourneyData []byte `bson:"latestjourneydata,omitempty"`

	// Locked vehicles have manually curated fleet metadata that the engine
	// must not overwrite.
	Locked    bool `bson:"locked,omitempty"`
	Withdrawn bool `bson:"withdrawn,omitempty"`

	CreationDateTime     time.Time `bson:"creationdatetime"`
	ModificationDateTime time.Time `bson:"modificationdatetime"`
}

func VehicleIdentifier(sourceRef string, code string) string {
	return fmt.Sprintf(VehicleIDFormat, sourceRef, code)
}
