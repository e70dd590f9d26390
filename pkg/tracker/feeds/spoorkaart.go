package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SpoorkaartFeed reads the Spoorkaart train map API, a GeoJSON
// FeatureCollection of train positions.
type SpoorkaartFeed struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

type spoorkaartResponse struct {
	Features []*SpoorkaartFeature `json:"features"`
}

type SpoorkaartFeature struct {
	Properties struct {
		Ref   string `json:"ref"`
		Type  string `json:"type"`
		Label string `json:"label"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// Labels look like "IC 142 → Bh +119": train number, destination, delay.
var spoorkaartLabelRegex = regexp.MustCompile(`^(.*?)\s*→\s*(.*?)(?:\s*\(.+\))?(?:\s*\+\d+)?\s*$`)

func (f *SpoorkaartFeed) SourceName() string {
	return f.Name
}

func (f *SpoorkaartFeed) Fetch(ctx context.Context) ([]Item, error) {
	body, err := FetchURL(ctx, FetchOptions{
		URL:     f.URL,
		Headers: f.Headers,
		Timeout: f.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var response spoorkaartResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(response.Features))
	for _, feature := range response.Features {
		items = append(items, feature)
	}

	return items, nil
}

func (f *SpoorkaartFeed) ItemTimestamp(item Item) time.Time {
	return time.Now().UTC()
}

func (f *SpoorkaartFeed) ItemVehicleKey(item Item) (string, error) {
	feature := item.(*SpoorkaartFeature)
	if feature.Properties.Ref == "" {
		return "", fmt.Errorf("feature has no ref")
	}
	return feature.Properties.Ref, nil
}

func (f *SpoorkaartFeed) Fingerprint(item Item) string {
	feature := item.(*SpoorkaartFeature)

	parts := []string{feature.Properties.Ref}
	if len(feature.Geometry.Coordinates) == 2 {
		parts = append(parts,
			RoundCoordinate(feature.Geometry.Coordinates[1]),
			RoundCoordinate(feature.Geometry.Coordinates[0]))
	}

	return strings.Join(parts, "|")
}

func (f *SpoorkaartFeed) DescribeVehicle(item Item) VehicleDescriptor {
	feature := item.(*SpoorkaartFeature)

	return VehicleDescriptor{
		Code:        feature.Properties.Ref,
		FleetNumber: feature.Properties.Ref,
	}
}

func (f *SpoorkaartFeed) DescribeJourney(item Item) JourneyDescriptor {
	feature := item.(*SpoorkaartFeature)

	descriptor := JourneyDescriptor{
		RouteName: feature.Properties.Type,
	}

	match := spoorkaartLabelRegex.FindStringSubmatch(feature.Properties.Label)
	if match != nil {
		descriptor.Block = strings.TrimSpace(match[1])
		descriptor.Destination = strings.TrimSpace(match[2])
	} else {
		descriptor.Block = feature.Properties.Ref
		log.Debug().Str("label", feature.Properties.Label).Msg("Failed to parse destination from label")
	}

	return descriptor
}

func (f *SpoorkaartFeed) DescribeLocation(item Item) *LocationDescriptor {
	feature := item.(*SpoorkaartFeature)

	if len(feature.Geometry.Coordinates) != 2 {
		return nil
	}

	return &LocationDescriptor{
		Longitude: feature.Geometry.Coordinates[0],
		Latitude:  feature.Geometry.Coordinates[1],
	}
}
