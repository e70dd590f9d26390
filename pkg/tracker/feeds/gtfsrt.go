package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// GTFSRealtimeFeed reads vehicle positions from a GTFS-RT protobuf feed.
type GTFSRealtimeFeed struct {
	Name     string
	URL      string
	Headers  map[string]string
	Timeout  time.Duration
	Timezone *time.Location
}

func NewGTFSRealtimeFeed(name string, url string, headers map[string]string, timeout time.Duration, timezone string) (*GTFSRealtimeFeed, error) {
	location := time.UTC
	if timezone != "" {
		var err error
		location, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, err
		}
	}

	return &GTFSRealtimeFeed{
		Name:     name,
		URL:      url,
		Headers:  headers,
		Timeout:  timeout,
		Timezone: location,
	}, nil
}

func (f *GTFSRealtimeFeed) SourceName() string {
	return f.Name
}

func (f *GTFSRealtimeFeed) Fetch(ctx context.Context) ([]Item, error) {
	body, err := FetchURL(ctx, FetchOptions{
		URL:     f.URL,
		Headers: f.Headers,
		Timeout: f.Timeout,
	})
	if err != nil {
		return nil, err
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, err
	}

	var items []Item
	for _, entity := range feed.GetEntity() {
		if entity.GetVehicle() == nil {
			continue
		}
		items = append(items, entity)
	}

	return items, nil
}

func (f *GTFSRealtimeFeed) ItemTimestamp(item Item) time.Time {
	entity := item.(*gtfs.FeedEntity)
	return time.Unix(int64(entity.GetVehicle().GetTimestamp()), 0).UTC()
}

func (f *GTFSRealtimeFeed) ItemVehicleKey(item Item) (string, error) {
	entity := item.(*gtfs.FeedEntity)
	key := entity.GetVehicle().GetVehicle().GetId()
	if key == "" {
		return "", fmt.Errorf("entity %s has no vehicle id", entity.GetId())
	}
	return key, nil
}

func (f *GTFSRealtimeFeed) Fingerprint(item Item) string {
	vehicle := item.(*gtfs.FeedEntity).GetVehicle()
	trip := vehicle.GetTrip()
	position := vehicle.GetPosition()

	return strings.Join([]string{
		trip.GetRouteId(),
		trip.GetTripId(),
		trip.GetStartDate(),
		RoundCoordinate(float64(position.GetLatitude())),
		RoundCoordinate(float64(position.GetLongitude())),
	}, "|")
}

func (f *GTFSRealtimeFeed) DescribeVehicle(item Item) VehicleDescriptor {
	entity := item.(*gtfs.FeedEntity)
	vehicle := entity.GetVehicle().GetVehicle()

	rawPayload, err := protojson.Marshal(item.(*gtfs.FeedEntity))
	if err != nil {
		rawPayload = nil
	}

	return VehicleDescriptor{
		Code:       vehicle.GetId(),
		Reg:        vehicle.GetLicensePlate(),
		Name:       vehicle.GetLabel(),
		RawPayload: rawPayload,
	}
}

func (f *GTFSRealtimeFeed) DescribeJourney(item Item) JourneyDescriptor {
	trip := item.(*gtfs.FeedEntity).GetVehicle().GetTrip()

	descriptor := JourneyDescriptor{
		Code:      trip.GetTripId(),
		RouteName: trip.GetRouteId(),
	}

	if departure := f.parseStartDateTime(trip.GetStartDate(), trip.GetStartTime()); departure != nil {
		descriptor.DepartureTime = departure
	}

	return descriptor
}

func (f *GTFSRealtimeFeed) DescribeLocation(item Item) *LocationDescriptor {
	position := item.(*gtfs.FeedEntity).GetVehicle().GetPosition()
	if position == nil {
		return nil
	}

	descriptor := &LocationDescriptor{
		Longitude: float64(position.GetLongitude()),
		Latitude:  float64(position.GetLatitude()),
	}

	if position.Bearing != nil && position.GetBearing() != 0 {
		heading := float64(position.GetBearing())
		descriptor.Heading = &heading
	}

	return descriptor
}

// parseStartDateTime combines a GTFS start_date (YYYYMMDD) and start_time
// (HH:MM:SS, which may exceed 24 hours for trips crossing midnight) into a
// departure time in the feed's timezone.
func (f *GTFSRealtimeFeed) parseStartDateTime(startDate string, startTime string) *time.Time {
	if startDate == "" || startTime == "" {
		return nil
	}

	date, err := time.ParseInLocation("20060102", startDate, f.Timezone)
	if err != nil {
		log.Debug().Str("startdate", startDate).Msg("Failed to parse trip start date")
		return nil
	}

	var hours, minutes, seconds int
	if _, err := fmt.Sscanf(startTime, "%d:%d:%d", &hours, &minutes, &seconds); err != nil {
		log.Debug().Str("starttime", startTime).Msg("Failed to parse trip start time")
		return nil
	}

	departure := date.Add(
		time.Duration(hours)*time.Hour +
			time.Duration(minutes)*time.Minute +
			time.Duration(seconds)*time.Second)

	return &departure
}
