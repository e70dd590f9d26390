package tracker

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/fleet"
)

var (
	ErrNoMatchingService = errors.New("no service matches the query")
	ErrNoMatchingTrip    = errors.New("no trip matches the query")
	ErrAmbiguousTrip     = errors.New("multiple trips match the query")
)

// Some feeds prefix route names with operator letters ("SKY7" for "7")
var serviceNameRegex = regexp.MustCompile(`^\D+(\d+)$`)

// MatchQuery describes a live journey to be matched against the schedule.
type MatchQuery struct {
	RouteName    string
	OperatorRefs []string

	OriginStopRef      string
	DestinationStopRef string

	TripCode      string
	DepartureTime time.Time
}

// MatchResult is a matched schedule record. Trip may be nil when only the
// service could be identified.
type MatchResult struct {
	Service *fleet.Service
	Trip    *fleet.Trip
}

// Matcher links live journeys to scheduled services and trips. Matching
// narrows in stages: the operators' current services, then services
// calling at the reported origin stop, then route name, then the trip's
// ticket machine code, with calendars disambiguating duplicate codes.
type Matcher struct {
	Repository Repository

	Events *EventRecorder
}

func (m *Matcher) Match(ctx context.Context, query MatchQuery) (*MatchResult, error) {
	result, err := m.match(ctx, query)

	if m.Events != nil {
		m.Events.RecordMatch(query, result, err)
	}

	return result, err
}

func (m *Matcher) match(ctx context.Context, query MatchQuery) (*MatchResult, error) {
	if query.RouteName == "" || len(query.OperatorRefs) == 0 {
		return nil, ErrNoMatchingService
	}

	services, err := m.Repository.CurrentServices(ctx, query.OperatorRefs)
	if err != nil {
		return nil, err
	}

	services = m.filterServicesByStop(ctx, services, query.OriginStopRef)
	services = filterServicesByName(services, query.RouteName)

	if len(services) == 0 {
		return nil, ErrNoMatchingService
	}

	service := services[0]
	result := &MatchResult{Service: service}

	if query.TripCode == "" {
		return result, nil
	}

	serviceRefs := make([]string, len(services))
	for i, matched := range services {
		serviceRefs[i] = matched.PrimaryIdentifier
	}

	// Trip codes are only unique within a service, so the lookup stays
	// scoped to the matched services
	trips, err := m.Repository.TripsByTicketMachineCode(ctx, query.TripCode, serviceRefs)
	if err != nil {
		return nil, err
	}

	if len(trips) == 0 {
		return result, ErrNoMatchingTrip
	}

	if len(trips) > 1 {
		trips, err = m.filterTripsByCalendar(ctx, trips, query.DepartureTime)
		if err != nil {
			return nil, err
		}

		if len(trips) == 0 {
			return result, ErrNoMatchingTrip
		}
		if len(trips) > 1 {
			return result, ErrAmbiguousTrip
		}
	}

	result.Trip = trips[0]

	return result, nil
}

// filterServicesByStop keeps services whose routes call at the locality of
// the reported stop. An unknown stop leaves the set unfiltered.
func (m *Matcher) filterServicesByStop(ctx context.Context, services []*fleet.Service, stopRef string) []*fleet.Service {
	if stopRef == "" || len(services) == 0 {
		return services
	}

	stop, err := m.Repository.StopByRef(ctx, stopRef)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("stop", stopRef).Msg("Failed to look up stop")
		}
		return services
	}

	if stop.LocalityRef == "" {
		return services
	}

	var filtered []*fleet.Service
	for _, service := range services {
		for _, localityRef := range service.LocalityRefs {
			if localityRef == stop.LocalityRef {
				filtered = append(filtered, service)
				break
			}
		}
	}

	if len(filtered) == 0 {
		return services
	}

	return filtered
}

func filterServicesByName(services []*fleet.Service, routeName string) []*fleet.Service {
	var filtered []*fleet.Service
	for _, service := range services {
		if serviceNameMatches(service, routeName) {
			filtered = append(filtered, service)
		}
	}

	if len(filtered) > 0 {
		return filtered
	}

	// Retry with the trailing digits of a prefixed route name
	nameMatch := serviceNameRegex.FindStringSubmatch(routeName)
	if len(nameMatch) == 2 {
		for _, service := range services {
			if serviceNameMatches(service, nameMatch[1]) {
				filtered = append(filtered, service)
			}
		}
	}

	return filtered
}

func serviceNameMatches(service *fleet.Service, routeName string) bool {
	if strings.EqualFold(service.ServiceName, routeName) {
		return true
	}
	for _, otherName := range service.OtherNames {
		if strings.EqualFold(otherName, routeName) {
			return true
		}
	}
	return false
}

func (m *Matcher) filterTripsByCalendar(ctx context.Context, trips []*fleet.Trip, departureTime time.Time) ([]*fleet.Trip, error) {
	calendarRefs := make([]string, 0, len(trips))
	for _, trip := range trips {
		if trip.CalendarRef != "" {
			calendarRefs = append(calendarRefs, trip.CalendarRef)
		}
	}

	calendars, err := m.Repository.CalendarsByRefs(ctx, calendarRefs)
	if err != nil {
		return nil, err
	}

	var filtered []*fleet.Trip
	for _, trip := range trips {
		calendar := calendars[trip.CalendarRef]
		if calendar != nil && calendar.MatchDate(departureTime) {
			filtered = append(filtered, trip)
		}
	}

	return filtered, nil
}
