package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulcager/osgridref"
	"github.com/rs/zerolog/log"
)

// UKTrackingFeed reads a traccar-style vehicle tracking gateway used by a
// group of UK bus operators. Items use short field names and millisecond
// epoch timestamps, and some report OS grid eastings and northings instead
// of coordinates.
type UKTrackingFeed struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

type ukTrackingResponse struct {
	Services []*UKTrackingItem `json:"services"`
}

type UKTrackingItem struct {
	FleetNumber     string `json:"fn"`
	UpdateTime      int64  `json:"ut"`
	ActualDeparture int64  `json:"ao"`
	EstimatedDeparture int64 `json:"eo"`
	JourneyCode     string `json:"td"`
	ServiceNumber   string `json:"sn"`
	Destination     string `json:"dd"`
	FinalStopName   string `json:"fs"`
	OriginRef       string `json:"or"`
	PreviousRef     string `json:"pr"`
	NextRef         string `json:"nr"`
	FinalRef        string `json:"fr"`
	OperatorCode    string `json:"oc"`
	ServiceOperator string `json:"so"`
	Heading         string `json:"hg"`
	Latitude        string `json:"la"`
	Longitude       string `json:"lo"`
	Easting         string `json:"ea"`
	Northing        string `json:"no"`
}

func (f *UKTrackingFeed) SourceName() string {
	return f.Name
}

func (f *UKTrackingFeed) Fetch(ctx context.Context) ([]Item, error) {
	body, err := FetchURL(ctx, FetchOptions{
		URL:     f.URL,
		Headers: f.Headers,
		Timeout: f.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var response ukTrackingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(response.Services))
	for _, item := range response.Services {
		items = append(items, item)
	}

	return items, nil
}

func (f *UKTrackingFeed) ItemTimestamp(item Item) time.Time {
	return parseMillisTimestamp(item.(*UKTrackingItem).UpdateTime)
}

func (f *UKTrackingFeed) ItemVehicleKey(item Item) (string, error) {
	report := item.(*UKTrackingItem)
	if report.FleetNumber == "" {
		return "", fmt.Errorf("item has no fleet number")
	}
	return report.FleetNumber, nil
}

// Fingerprint only covers the update time as the gateway bumps it on
// every meaningful change.
func (f *UKTrackingFeed) Fingerprint(item Item) string {
	return strconv.FormatInt(item.(*UKTrackingItem).UpdateTime, 10)
}

func (f *UKTrackingFeed) DescribeVehicle(item Item) VehicleDescriptor {
	report := item.(*UKTrackingItem)

	operatorCode := strings.ToUpper(report.OperatorCode)
	// The gateway reports Manchester vehicles on loan to SMA services
	// under the wrong operator
	if report.ServiceOperator == "SMA" && operatorCode == "SCLK" {
		operatorCode = "SCMN"
	}

	return VehicleDescriptor{
		Code:        report.FleetNumber,
		FleetCode:   report.FleetNumber,
		OperatorRef: operatorCode,
	}
}

func (f *UKTrackingFeed) DescribeJourney(item Item) JourneyDescriptor {
	report := item.(*UKTrackingItem)

	destination := report.Destination
	if destination == "" {
		destination = report.FinalStopName
	}

	descriptor := JourneyDescriptor{
		Code:               report.JourneyCode,
		RouteName:          report.ServiceNumber,
		Destination:        destination,
		OriginStopRef:      report.OriginRef,
		DestinationStopRef: report.FinalRef,
	}

	if report.ActualDeparture != 0 {
		departure := parseMillisTimestamp(report.ActualDeparture)
		descriptor.DepartureTime = &departure
	}
	if report.EstimatedDeparture != 0 {
		expected := parseMillisTimestamp(report.EstimatedDeparture)
		descriptor.ExpectedDeparture = &expected
	}

	return descriptor
}

func (f *UKTrackingFeed) DescribeLocation(item Item) *LocationDescriptor {
	report := item.(*UKTrackingItem)

	var longitude, latitude float64
	var err error

	if report.Latitude != "" && report.Longitude != "" {
		latitude, err = strconv.ParseFloat(report.Latitude, 64)
		if err != nil {
			return nil
		}
		longitude, err = strconv.ParseFloat(report.Longitude, 64)
		if err != nil {
			return nil
		}
	} else if report.Easting != "" && report.Northing != "" {
		gridRef, err := osgridref.ParseOsGridRef(fmt.Sprintf("%s,%s", report.Easting, report.Northing))
		if err != nil {
			log.Debug().Err(err).Str("easting", report.Easting).Str("northing", report.Northing).Msg("Failed to parse grid reference")
			return nil
		}
		latitude, longitude = gridRef.ToLatLon()
	} else {
		return nil
	}

	descriptor := &LocationDescriptor{
		Longitude: longitude,
		Latitude:  latitude,
	}

	if report.Heading != "" {
		if heading, err := strconv.ParseFloat(report.Heading, 64); err == nil {
			descriptor.Heading = &heading
		}
	}

	return descriptor
}

func parseMillisTimestamp(millis int64) time.Time {
	return time.Unix(millis/1000, (millis%1000)*int64(time.Millisecond)).UTC()
}
