package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/timesbus/velio/pkg/fleet"
)

var ErrNotFound = errors.New("record not found")

// Repository is the persistence boundary for the tracker. The production
// implementation is backed by MongoDB.
type Repository interface {
	GetOrCreateSource(ctx context.Context, name string, url string) (*fleet.Source, error)
	UpdateSourceFetched(ctx context.Context, name string, fetchedAt time.Time) error

	GetOrCreateOperator(ctx context.Context, identifier string, name string) (*fleet.Operator, error)
	OperatorsInGroup(ctx context.Context, groupIdentifier string) ([]*fleet.Operator, error)

	VehiclesByCodes(ctx context.Context, sourceRef string, codes []string) ([]*fleet.Vehicle, error)
	VehicleByCode(ctx context.Context, sourceRef string, code string) (*fleet.Vehicle, error)
	VehicleByOperatorsAndCode(ctx context.Context, operatorRefs []string, code string, excludeIdentifier string) (*fleet.Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle *fleet.Vehicle) (*fleet.Vehicle, error)
	UpdateVehicle(ctx context.Context, identifier string, fields map[string]interface{}) error

	JourneyByIdentifier(ctx context.Context, identifier string) (*fleet.VehicleJourney, error)
	JourneyByCode(ctx context.Context, vehicleRef string, code string) (*fleet.VehicleJourney, error)
	JourneyByDeparture(ctx context.Context, vehicleRef string, departureTime time.Time, routeName string) (*fleet.VehicleJourney, error)
	CreateJourney(ctx context.Context, journey *fleet.VehicleJourney) (*fleet.VehicleJourney, error)
	UpdateJourney(ctx context.Context, identifier string, fields map[string]interface{}) error

	CreateLocations(ctx context.Context, locations []*fleet.VehicleLocation) error

	CurrentServices(ctx context.Context, operatorRefs []string) ([]*fleet.Service, error)
	StopByRef(ctx context.Context, stopRef string) (*fleet.Stop, error)
	TripsByTicketMachineCode(ctx context.Context, code string, serviceRefs []string) ([]*fleet.Trip, error)
	CalendarsByRefs(ctx context.Context, calendarRefs []string) (map[string]*fleet.Calendar, error)
}
