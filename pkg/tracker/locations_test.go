package tracker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
)

func testJourney() *fleet.VehicleJourney {
	return &fleet.VehicleJourney{PrimaryIdentifier: "JOURNEY:VEHICLE:Test Source:AB123:20240301"}
}

func TestBuildLocation(t *testing.T) {
	heading := 90.0
	recordedAt := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	location := BuildLocation(&feeds.LocationDescriptor{
		Longitude: -0.1,
		Latitude:  51.5,
		Heading:   &heading,
	}, testVehicle(), testJourney(), recordedAt)

	require.NotNil(t, location)
	assert.Equal(t, "VEHICLE:Test Source:AB123", location.VehicleRef)
	assert.Equal(t, -0.1, location.Location.Longitude())
	assert.Equal(t, 51.5, location.Location.Latitude())
	assert.Equal(t, &heading, location.Heading)
	assert.Equal(t, recordedAt, location.RecordedAt)
}

func TestBuildLocationSkipsMissingPosition(t *testing.T) {
	assert.Nil(t, BuildLocation(nil, testVehicle(), testJourney(), time.Now()))
}

func TestBuildLocationSkipsOutOfRangeCoordinates(t *testing.T) {
	vehicle := testVehicle()
	journey := testJourney()

	assert.Nil(t, BuildLocation(&feeds.LocationDescriptor{Longitude: 200, Latitude: 51.5}, vehicle, journey, time.Now()))
	assert.Nil(t, BuildLocation(&feeds.LocationDescriptor{Longitude: -0.1, Latitude: -95}, vehicle, journey, time.Now()))
	assert.Nil(t, BuildLocation(&feeds.LocationDescriptor{Longitude: math.NaN(), Latitude: 51.5}, vehicle, journey, time.Now()))
}

func TestBuildLocationAllowsBoundaryCoordinates(t *testing.T) {
	location := BuildLocation(&feeds.LocationDescriptor{Longitude: 180, Latitude: -90}, testVehicle(), testJourney(), time.Now())
	assert.NotNil(t, location)
}
