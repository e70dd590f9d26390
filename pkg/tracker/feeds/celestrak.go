package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/rs/zerolog/log"
)

// CelestrakFeed reads a Celestrak TLE element set and propagates each
// satellite to its current position with SGP4. Unlike the other feeds the
// positions are computed locally rather than reported upstream.
type CelestrakFeed struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

type CelestrakItem struct {
	CatalogNumber string
	SatelliteName string
	Latitude      float64
	Longitude     float64
	Altitude      float64
	Timestamp     time.Time
}

func (f *CelestrakFeed) SourceName() string {
	return f.Name
}

func (f *CelestrakFeed) Fetch(ctx context.Context) ([]Item, error) {
	body, err := FetchURL(ctx, FetchOptions{
		URL:     f.URL,
		Headers: f.Headers,
		Timeout: f.Timeout,
	})
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	now := time.Now().UTC()

	var items []Item

	for i := 0; i+2 < len(lines); i += 3 {
		name := strings.TrimSpace(lines[i])
		line1 := strings.TrimSpace(lines[i+1])
		line2 := strings.TrimSpace(lines[i+2])

		item, err := propagateElements(name, line1, line2, now)
		if err != nil {
			log.Debug().Err(err).Str("satellite", name).Msg("Failed to propagate elements")
			continue
		}

		items = append(items, item)
	}

	return items, nil
}

// propagateElements runs SGP4 for one TLE entry. The underlying parser
// panics on malformed element sets so recover and report those as errors.
func propagateElements(name string, line1 string, line2 string, now time.Time) (item *CelestrakItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			item = nil
			err = fmt.Errorf("invalid element set: %v", r)
		}
	}()

	if len(line1) < 7 || len(line2) < 7 {
		return nil, fmt.Errorf("element set lines too short")
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)

	year, month, day := now.Date()
	hour, minute, second := now.Clock()

	position, _ := satellite.Propagate(sat, year, int(month), day, hour, minute, second)
	gmst := satellite.GSTimeFromDate(year, int(month), day, hour, minute, second)

	altitude, _, latLong := satellite.ECIToLLA(position, gmst)
	degrees := satellite.LatLongDeg(latLong)

	// Columns 3-7 of line 1 are the NORAD catalog number
	catalogNumber := strings.TrimSpace(line1[2:7])

	return &CelestrakItem{
		CatalogNumber: catalogNumber,
		SatelliteName: name,
		Latitude:      degrees.Latitude,
		Longitude:     degrees.Longitude,
		Altitude:      altitude,
		Timestamp:     now,
	}, nil
}

func (f *CelestrakFeed) ItemTimestamp(item Item) time.Time {
	return item.(*CelestrakItem).Timestamp
}

func (f *CelestrakFeed) ItemVehicleKey(item Item) (string, error) {
	satelliteItem := item.(*CelestrakItem)
	if satelliteItem.CatalogNumber == "" {
		return "", fmt.Errorf("element set has no catalog number")
	}
	return satelliteItem.CatalogNumber, nil
}

func (f *CelestrakFeed) Fingerprint(item Item) string {
	satelliteItem := item.(*CelestrakItem)

	return strings.Join([]string{
		satelliteItem.CatalogNumber,
		RoundCoordinate(satelliteItem.Latitude),
		RoundCoordinate(satelliteItem.Longitude),
		RoundAltitude(satelliteItem.Altitude),
	}, "|")
}

func (f *CelestrakFeed) DescribeVehicle(item Item) VehicleDescriptor {
	satelliteItem := item.(*CelestrakItem)

	return VehicleDescriptor{
		Code: satelliteItem.CatalogNumber,
		Reg:  satelliteItem.CatalogNumber,
		Name: satelliteItem.SatelliteName,
	}
}

func (f *CelestrakFeed) DescribeJourney(item Item) JourneyDescriptor {
	return JourneyDescriptor{
		RouteName:   "Orbit",
		Direction:   "Earth",
		Destination: "Orbit",
	}
}

func (f *CelestrakFeed) DescribeLocation(item Item) *LocationDescriptor {
	satelliteItem := item.(*CelestrakItem)

	return &LocationDescriptor{
		Longitude: satelliteItem.Longitude,
		Latitude:  satelliteItem.Latitude,
	}
}
