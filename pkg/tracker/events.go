package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/timesbus/velio/pkg/elastic_client"
)

// EventRecorder publishes match outcomes to Elasticsearch so match quality
// per source can be tracked over time. Indexes are partitioned by ISO week.
type EventRecorder struct {
	SourceName string
}

type matchEvent struct {
	Timestamp time.Time

	Source    string
	RouteName string
	TripCode  string

	Success       bool
	FailureReason string `json:",omitempty"`

	ServiceRef string `json:",omitempty"`
	TripRef    string `json:",omitempty"`
}

func (e *EventRecorder) RecordMatch(query MatchQuery, result *MatchResult, matchErr error) {
	currentTime := time.Now()
	yearNumber, weekNumber := currentTime.ISOWeek()
	indexName := fmt.Sprintf("match-events-%d-%d", yearNumber, weekNumber)

	event := matchEvent{
		Timestamp: currentTime,
		Source:    e.SourceName,
		RouteName: query.RouteName,
		TripCode:  query.TripCode,
		Success:   matchErr == nil,
	}

	if matchErr != nil {
		event.FailureReason = failureReason(matchErr)
	}

	if result != nil {
		if result.Service != nil {
			event.ServiceRef = result.Service.PrimaryIdentifier
		}
		if result.Trip != nil {
			event.TripRef = result.Trip.PrimaryIdentifier
		}
	}

	jsonEvent, _ := json.Marshal(event)

	elastic_client.IndexRequest(indexName, bytes.NewReader(jsonEvent))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoMatchingService):
		return "no-matching-service"
	case errors.Is(err, ErrNoMatchingTrip):
		return "no-matching-trip"
	case errors.Is(err, ErrAmbiguousTrip):
		return "ambiguous-trip"
	default:
		return "error"
	}
}
