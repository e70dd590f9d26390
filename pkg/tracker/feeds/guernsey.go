package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// GuernseyFeed reads the Guernsey buses tracking API, a JSON document with
// an items array of vehicle reports.
type GuernseyFeed struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

type guernseyResponse struct {
	Items []*GuernseyItem `json:"items"`
}

type GuernseyItem struct {
	VehicleID     string `json:"vehicleId"`
	VehicleRef    string `json:"vehicleRef"`
	Reported      string `json:"reported"`
	RouteName     string `json:"routeName"`
	Direction     string `json:"direction"`
	Destination   string `json:"destination"`
	VehicleDutyID string `json:"vehicleDutyId"`

	Position *struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Bearing   *float64 `json:"bearing"`
	} `json:"position"`
}

func (f *GuernseyFeed) SourceName() string {
	return f.Name
}

func (f *GuernseyFeed) Fetch(ctx context.Context) ([]Item, error) {
	body, err := FetchURL(ctx, FetchOptions{
		URL:     f.URL,
		Headers: f.Headers,
		Timeout: f.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var response guernseyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(response.Items))
	for _, item := range response.Items {
		items = append(items, item)
	}

	return items, nil
}

func (f *GuernseyFeed) ItemTimestamp(item Item) time.Time {
	report := item.(*GuernseyItem)

	if report.Reported != "" {
		reported, err := time.Parse(time.RFC3339, report.Reported)
		if err == nil {
			return reported.UTC()
		}
		log.Debug().Str("reported", report.Reported).Msg("Failed to parse reported time")
	}

	return time.Now().UTC()
}

func (f *GuernseyFeed) ItemVehicleKey(item Item) (string, error) {
	report := item.(*GuernseyItem)

	if report.VehicleRef != "" {
		return report.VehicleRef, nil
	}
	if report.VehicleID != "" {
		return report.VehicleID, nil
	}

	return "", fmt.Errorf("item has no vehicleRef or vehicleId")
}

func (f *GuernseyFeed) Fingerprint(item Item) string {
	report := item.(*GuernseyItem)

	parts := []string{report.Reported}
	if report.Position != nil {
		parts = append(parts,
			RoundCoordinate(report.Position.Latitude),
			RoundCoordinate(report.Position.Longitude))
	}

	return strings.Join(parts, "|")
}

func (f *GuernseyFeed) DescribeVehicle(item Item) VehicleDescriptor {
	report := item.(*GuernseyItem)

	code, _ := f.ItemVehicleKey(item)

	return VehicleDescriptor{
		Code:        code,
		FleetNumber: report.VehicleRef,
	}
}

func (f *GuernseyFeed) DescribeJourney(item Item) JourneyDescriptor {
	report := item.(*GuernseyItem)

	return JourneyDescriptor{
		RouteName:   report.RouteName,
		Direction:   report.Direction,
		Destination: report.Destination,
		Block:       report.VehicleDutyID,
	}
}

func (f *GuernseyFeed) DescribeLocation(item Item) *LocationDescriptor {
	report := item.(*GuernseyItem)

	if report.Position == nil {
		return nil
	}

	return &LocationDescriptor{
		Longitude: report.Position.Longitude,
		Latitude:  report.Position.Latitude,
		Heading:   report.Position.Bearing,
	}
}
