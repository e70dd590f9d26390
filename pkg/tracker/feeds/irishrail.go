package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	routeNameMaxLength   = 64
	destinationMaxLength = 64
	directionMaxLength   = 8
)

// IrishRailFeed reads the Irish Rail realtime API, an XML document of
// current train positions.
type IrishRailFeed struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

type irishRailResponse struct {
	Trains []*IrishRailTrain `xml:"objTrainPositions"`
}

type IrishRailTrain struct {
	TrainCode     string  `xml:"TrainCode"`
	TrainStatus   string  `xml:"TrainStatus"`
	TrainLatitude float64 `xml:"TrainLatitude"`
	TrainLongitude float64 `xml:"TrainLongitude"`
	Direction     string  `xml:"Direction"`
	PublicMessage string  `xml:"PublicMessage"`
}

func (f *IrishRailFeed) SourceName() string {
	return f.Name
}

func (f *IrishRailFeed) Fetch(ctx context.Context) ([]Item, error) {
	body, err := FetchURL(ctx, FetchOptions{
		URL:     f.URL,
		Headers: f.Headers,
		Timeout: f.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var response irishRailResponse
	if err := xml.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(response.Trains))
	for _, train := range response.Trains {
		items = append(items, train)
	}

	return items, nil
}

func (f *IrishRailFeed) ItemTimestamp(item Item) time.Time {
	// The API reports no per-train timestamp
	return time.Now().UTC()
}

func (f *IrishRailFeed) ItemVehicleKey(item Item) (string, error) {
	train := item.(*IrishRailTrain)
	if train.TrainCode == "" {
		return "", fmt.Errorf("train has no TrainCode")
	}
	return train.TrainCode, nil
}

func (f *IrishRailFeed) Fingerprint(item Item) string {
	train := item.(*IrishRailTrain)

	return strings.Join([]string{
		train.TrainCode,
		RoundCoordinate(train.TrainLatitude),
		RoundCoordinate(train.TrainLongitude),
	}, "|")
}

func (f *IrishRailFeed) DescribeVehicle(item Item) VehicleDescriptor {
	train := item.(*IrishRailTrain)

	return VehicleDescriptor{
		Code:      train.TrainCode,
		FleetCode: train.TrainCode,
	}
}

func (f *IrishRailFeed) DescribeJourney(item Item) JourneyDescriptor {
	train := item.(*IrishRailTrain)

	descriptor := JourneyDescriptor{
		Direction: truncate(train.Direction, directionMaxLength),
	}

	publicMessage := strings.ReplaceAll(train.PublicMessage, "\\n", "\n")

	if train.Direction != "" {
		descriptor.Destination = truncate(train.Direction, destinationMaxLength)
	} else {
		descriptor.Destination = truncate(destinationFromMessage(publicMessage), destinationMaxLength)
	}

	descriptor.RouteName = truncate(routeNameFromMessage(publicMessage, train.TrainCode), routeNameMaxLength)

	return descriptor
}

func (f *IrishRailFeed) DescribeLocation(item Item) *LocationDescriptor {
	train := item.(*IrishRailTrain)

	// The API reports (0, 0) for trains not yet running
	if train.TrainLatitude == 0 && train.TrainLongitude == 0 {
		return nil
	}

	return &LocationDescriptor{
		Longitude: train.TrainLongitude,
		Latitude:  train.TrainLatitude,
	}
}

// destinationFromMessage pulls a destination out of messages like
// "TERMINATED Bray at 21:18" or "Arrived Mallow next stop Cork".
func destinationFromMessage(publicMessage string) string {
	if _, after, found := strings.Cut(publicMessage, "TERMINATED "); found {
		destination, _, _ := strings.Cut(after, " at ")
		return strings.TrimSpace(destination)
	}

	if _, after, found := strings.Cut(publicMessage, "Arrived "); found {
		if _, nextStop, hasNext := strings.Cut(after, " next stop "); hasNext {
			return strings.TrimSpace(nextStop)
		}
		destination, _, _ := strings.Cut(after, " ")
		return strings.TrimSpace(destination)
	}

	lines := strings.Split(publicMessage, "\n")
	if len(lines) > 1 {
		if _, after, found := strings.Cut(lines[1], " to "); found {
			destination, _, _ := strings.Cut(strings.TrimSpace(after), " ")
			return strings.TrimSuffix(destination, ")")
		}
	}

	return ""
}

// routeNameFromMessage extracts the route from a multi-line public message
// such as "E257\n20:03 - Malahide to Bray(1 mins late)\n...".
func routeNameFromMessage(publicMessage string, trainCode string) string {
	lines := strings.Split(publicMessage, "\n")

	if len(lines) < 2 || strings.TrimSpace(lines[0]) != trainCode {
		return publicMessage
	}

	routeCandidate := strings.TrimSpace(lines[1])

	if before, after, found := strings.Cut(routeCandidate, " - "); found && isClockTime(before) {
		return strings.TrimSpace(after)
	}

	return routeCandidate
}

func isClockTime(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return false
	}
	for _, part := range parts {
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
		}
	}
	return true
}

func truncate(value string, maxLength int) string {
	if len(value) > maxLength {
		return value[:maxLength]
	}
	return value
}
