package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
)

// memoryRepository is an in-memory Repository for tests.
type memoryRepository struct {
	mutex sync.Mutex

	sources   map[string]*fleet.Source
	operators map[string]*fleet.Operator
	vehicles  map[string]*fleet.Vehicle
	journeys  map[string]*fleet.VehicleJourney
	locations []*fleet.VehicleLocation

	services  []*fleet.Service
	trips     []*fleet.Trip
	stops     []*fleet.Stop
	calendars map[string]*fleet.Calendar
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		sources:   map[string]*fleet.Source{},
		operators: map[string]*fleet.Operator{},
		vehicles:  map[string]*fleet.Vehicle{},
		journeys:  map[string]*fleet.VehicleJourney{},
		calendars: map[string]*fleet.Calendar{},
	}
}

func (r *memoryRepository) GetOrCreateSource(ctx context.Context, name string, url string) (*fleet.Source, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if source, ok := r.sources[name]; ok {
		return source, nil
	}

	source := &fleet.Source{Name: name, URL: url, CreationDateTime: time.Now()}
	r.sources[name] = source
	return source, nil
}

func (r *memoryRepository) UpdateSourceFetched(ctx context.Context, name string, fetchedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if source, ok := r.sources[name]; ok {
		source.LastFetchedAt = fetchedAt
	}
	return nil
}

func (r *memoryRepository) GetOrCreateOperator(ctx context.Context, identifier string, name string) (*fleet.Operator, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if operator, ok := r.operators[identifier]; ok {
		return operator, nil
	}

	operator := &fleet.Operator{PrimaryIdentifier: identifier, PrimaryName: name}
	r.operators[identifier] = operator
	return operator, nil
}

func (r *memoryRepository) OperatorsInGroup(ctx context.Context, groupIdentifier string) ([]*fleet.Operator, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var operators []*fleet.Operator
	for _, operator := range r.operators {
		if operator.OperatorGroupRef == groupIdentifier {
			operators = append(operators, operator)
		}
	}
	return operators, nil
}

func (r *memoryRepository) VehiclesByCodes(ctx context.Context, sourceRef string, codes []string) ([]*fleet.Vehicle, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	codeSet := map[string]bool{}
	for _, code := range codes {
		codeSet[code] = true
	}

	var vehicles []*fleet.Vehicle
	for _, vehicle := range r.vehicles {
		if vehicle.SourceRef == sourceRef && codeSet[vehicle.Code] {
			vehicles = append(vehicles, vehicle)
		}
	}
	return vehicles, nil
}

func (r *memoryRepository) VehicleByCode(ctx context.Context, sourceRef string, code string) (*fleet.Vehicle, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, vehicle := range r.vehicles {
		if vehicle.SourceRef == sourceRef && vehicle.Code == code {
			return vehicle, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) VehicleByOperatorsAndCode(ctx context.Context, operatorRefs []string, code string, excludeIdentifier string) (*fleet.Vehicle, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	refSet := map[string]bool{}
	for _, ref := range operatorRefs {
		refSet[ref] = true
	}

	for _, vehicle := range r.vehicles {
		if vehicle.PrimaryIdentifier == excludeIdentifier {
			continue
		}
		if refSet[vehicle.OperatorRef] && (vehicle.Code == code || vehicle.FleetCode == code) {
			return vehicle, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) CreateVehicle(ctx context.Context, vehicle *fleet.Vehicle) (*fleet.Vehicle, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.vehicles[vehicle.PrimaryIdentifier]; ok {
		return existing, nil
	}

	vehicle.CreationDateTime = time.Now()
	r.vehicles[vehicle.PrimaryIdentifier] = vehicle
	return vehicle, nil
}

func (r *memoryRepository) UpdateVehicle(ctx context.Context, identifier string, fields map[string]interface{}) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vehicle, ok := r.vehicles[identifier]
	if !ok {
		return ErrNotFound
	}

	for field, value := range fields {
		switch field {
		case "name":
			vehicle.Name = value.(string)
		case "reg":
			vehicle.Reg = value.(string)
		case "fleetnumber":
			vehicle.FleetNumber = value.(string)
		case "operatorref":
			vehicle.OperatorRef = value.(string)
		case "latestjourneyref":
			vehicle.LatestJourneyRef = value.(string)
		case "latestjourneycode":
			vehicle.LatestJourneyCode = value.(string)
		case "latestjourneydata":
			vehicle.LatestJourneyData = value.([]byte)
		default:
			return fmt.Errorf("unhandled vehicle field %s", field)
		}
	}
	return nil
}

func (r *memoryRepository) JourneyByIdentifier(ctx context.Context, identifier string) (*fleet.VehicleJourney, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if journey, ok := r.journeys[identifier]; ok {
		return journey, nil
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) JourneyByCode(ctx context.Context, vehicleRef string, code string) (*fleet.VehicleJourney, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, journey := range r.journeys {
		if journey.VehicleRef == vehicleRef && journey.Code == code {
			return journey, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) JourneyByDeparture(ctx context.Context, vehicleRef string, departureTime time.Time, routeName string) (*fleet.VehicleJourney, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, journey := range r.journeys {
		if journey.VehicleRef != vehicleRef || !journey.DepartureTime.Equal(departureTime) {
			continue
		}
		if routeName != "" && journey.RouteName != routeName {
			continue
		}
		return journey, nil
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) CreateJourney(ctx context.Context, journey *fleet.VehicleJourney) (*fleet.VehicleJourney, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.journeys[journey.PrimaryIdentifier]; ok {
		return existing, nil
	}

	journey.CreationDateTime = time.Now()
	r.journeys[journey.PrimaryIdentifier] = journey
	return journey, nil
}

func (r *memoryRepository) UpdateJourney(ctx context.Context, identifier string, fields map[string]interface{}) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	journey, ok := r.journeys[identifier]
	if !ok {
		return ErrNotFound
	}

	for field, value := range fields {
		switch field {
		case "destination":
			journey.Destination = value.(string)
		case "direction":
			journey.Direction = value.(string)
		case "block":
			journey.Block = value.(string)
		case "serviceref":
			journey.ServiceRef = value.(string)
		case "tripref":
			journey.TripRef = value.(string)
		default:
			return fmt.Errorf("unhandled journey field %s", field)
		}
	}
	return nil
}

func (r *memoryRepository) CreateLocations(ctx context.Context, locations []*fleet.VehicleLocation) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.locations = append(r.locations, locations...)
	return nil
}

func (r *memoryRepository) CurrentServices(ctx context.Context, operatorRefs []string) ([]*fleet.Service, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	refSet := map[string]bool{}
	for _, ref := range operatorRefs {
		refSet[ref] = true
	}

	var services []*fleet.Service
	for _, service := range r.services {
		if service.Current && refSet[service.OperatorRef] {
			services = append(services, service)
		}
	}
	return services, nil
}

func (r *memoryRepository) StopByRef(ctx context.Context, stopRef string) (*fleet.Stop, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, stop := range r.stops {
		if stop.PrimaryIdentifier == stopRef {
			return stop, nil
		}
		for _, other := range stop.OtherIdentifiers {
			if other == stopRef {
				return stop, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) TripsByTicketMachineCode(ctx context.Context, code string, serviceRefs []string) ([]*fleet.Trip, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	refSet := map[string]bool{}
	for _, ref := range serviceRefs {
		refSet[ref] = true
	}

	var trips []*fleet.Trip
	for _, trip := range r.trips {
		if trip.TicketMachineCode != code {
			continue
		}
		if len(refSet) > 0 && !refSet[trip.ServiceRef] {
			continue
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

func (r *memoryRepository) CalendarsByRefs(ctx context.Context, calendarRefs []string) (map[string]*fleet.Calendar, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	calendars := map[string]*fleet.Calendar{}
	for _, ref := range calendarRefs {
		if calendar, ok := r.calendars[ref]; ok {
			calendars[ref] = calendar
		}
	}
	return calendars, nil
}

// stubItem is a scripted feed report for tests. Heading is exported so
// filter expressions can reference it like a real feed item field.
type stubItem struct {
	Heading string

	key         string
	fingerprint string
	recordedAt  time.Time

	vehicle  feeds.VehicleDescriptor
	journey  feeds.JourneyDescriptor
	location *feeds.LocationDescriptor

	failKey bool
}

// stubFeed serves a fixed set of items without any network access.
type stubFeed struct {
	name  string
	items []*stubItem

	fetchErr error
}

func (f *stubFeed) SourceName() string {
	return f.name
}

func (f *stubFeed) Fetch(ctx context.Context) ([]feeds.Item, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	items := make([]feeds.Item, len(f.items))
	for i, item := range f.items {
		items[i] = item
	}
	return items, nil
}

func (f *stubFeed) ItemTimestamp(item feeds.Item) time.Time {
	return item.(*stubItem).recordedAt
}

func (f *stubFeed) ItemVehicleKey(item feeds.Item) (string, error) {
	report := item.(*stubItem)
	if report.failKey {
		return "", fmt.Errorf("item has no vehicle key")
	}
	return report.key, nil
}

func (f *stubFeed) Fingerprint(item feeds.Item) string {
	return item.(*stubItem).fingerprint
}

func (f *stubFeed) DescribeVehicle(item feeds.Item) feeds.VehicleDescriptor {
	return item.(*stubItem).vehicle
}

func (f *stubFeed) DescribeJourney(item feeds.Item) feeds.JourneyDescriptor {
	return item.(*stubItem).journey
}

func (f *stubFeed) DescribeLocation(item feeds.Item) *feeds.LocationDescriptor {
	return item.(*stubItem).location
}
