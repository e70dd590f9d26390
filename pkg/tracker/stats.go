package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/database"
)

// StartStatsServer exposes per-source pass statistics and a health check
// over plain HTTP.
func StartStatsServer(trackers []*Tracker) {
	http.Handle("/tracker-stats/overview", &statsServerHandler{trackers: trackers})
	http.Handle("/health", &healthHandler{})

	log.Info().Msg("Stats server listening on http://localhost:3333/tracker-stats/overview")
	if err := http.ListenAndServe(":3333", nil); err != nil {
		panic(err)
	}
}

type statsServerHandler struct {
	trackers []*Tracker
}

func (h *statsServerHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	overview := map[string]*PassStats{}

	for _, tracker := range h.trackers {
		overview[tracker.Feed.SourceName()] = tracker.LastPassStats()
	}

	writer.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(writer).Encode(overview); err != nil {
		log.Error().Err(err).Msg("Failed to write stats response")
	}
}

type healthHandler struct{}

func (h *healthHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()

	if err := database.MongoGlobalInstance.Client.Ping(ctx, nil); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		writer.Write([]byte("database unreachable"))
		return
	}

	writer.WriteHeader(http.StatusOK)
	writer.Write([]byte("ok"))
}
