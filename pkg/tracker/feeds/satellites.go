package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SatellitesFeed reads a satellite positions API returning a JSON array of
// propagated positions keyed by NORAD catalog number.
type SatellitesFeed struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

type satellitesResponse struct {
	Satellites []*SatelliteItem `json:"satellites"`
}

type SatelliteItem struct {
	Info struct {
		SatelliteID   int64  `json:"satelliteId"`
		SatelliteName string `json:"satelliteName"`
	} `json:"info"`
	Position struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Altitude  float64 `json:"altitude"`
		Azimuth   float64 `json:"azimuth"`
		Timestamp int64   `json:"timestamp"`
	} `json:"position"`
}

func (f *SatellitesFeed) SourceName() string {
	return f.Name
}

func (f *SatellitesFeed) Fetch(ctx context.Context) ([]Item, error) {
	body, err := FetchURL(ctx, FetchOptions{
		URL:     f.URL,
		Headers: f.Headers,
		Timeout: f.Timeout,
	})
	if err != nil {
		return nil, err
	}

	// The payload is either a bare array or wrapped in a satellites object
	var satellites []*SatelliteItem
	if err := json.Unmarshal(body, &satellites); err != nil {
		var response satellitesResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, err
		}
		satellites = response.Satellites
	}

	items := make([]Item, 0, len(satellites))
	for _, satellite := range satellites {
		if satellite.Position.Timestamp == 0 {
			continue
		}
		items = append(items, satellite)
	}

	return items, nil
}

func (f *SatellitesFeed) ItemTimestamp(item Item) time.Time {
	satellite := item.(*SatelliteItem)
	return time.Unix(satellite.Position.Timestamp, 0).UTC()
}

func (f *SatellitesFeed) ItemVehicleKey(item Item) (string, error) {
	satellite := item.(*SatelliteItem)
	if satellite.Info.SatelliteID == 0 {
		return "", fmt.Errorf("satellite has no catalog number")
	}
	return strconv.FormatInt(satellite.Info.SatelliteID, 10), nil
}

func (f *SatellitesFeed) Fingerprint(item Item) string {
	satellite := item.(*SatelliteItem)

	return strings.Join([]string{
		strconv.FormatInt(satellite.Position.Timestamp, 10),
		RoundCoordinate(satellite.Position.Latitude),
		RoundCoordinate(satellite.Position.Longitude),
		RoundAltitude(satellite.Position.Altitude),
	}, "|")
}

func (f *SatellitesFeed) DescribeVehicle(item Item) VehicleDescriptor {
	satellite := item.(*SatelliteItem)
	code := strconv.FormatInt(satellite.Info.SatelliteID, 10)

	return VehicleDescriptor{
		Code:      code,
		FleetCode: code,
		Name:      satellite.Info.SatelliteName,
	}
}

func (f *SatellitesFeed) DescribeJourney(item Item) JourneyDescriptor {
	return JourneyDescriptor{
		RouteName:   "Orbit",
		Destination: "Orbit",
	}
}

func (f *SatellitesFeed) DescribeLocation(item Item) *LocationDescriptor {
	satellite := item.(*SatelliteItem)

	heading := satellite.Position.Azimuth

	return &LocationDescriptor{
		Longitude: satellite.Position.Longitude,
		Latitude:  satellite.Position.Latitude,
		Heading:   &heading,
	}
}
