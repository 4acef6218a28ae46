// Package http serves the operational endpoints of a long-running chamada
// process: a health report of the synced collections and Prometheus metrics.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chamada/internal/state"
)

type CollectionStatus struct {
	Name    string `json:"name"`
	Items   int    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Probe reports the current state of one collection.
type Probe func() CollectionStatus

func CollectionProbe[T any](name string, collection *state.Collection[T]) Probe {
	return func() CollectionStatus {
		snap := collection.Snapshot()
		return CollectionStatus{Name: name, Items: len(snap.Items), Loading: snap.Loading, Error: snap.Err}
	}
}

type Server struct {
	gatherer prometheus.Gatherer
	probes   []Probe
}

// NewServer serves metrics from gatherer, or from the default registry when
// it is nil.
func NewServer(gatherer prometheus.Gatherer, probes ...Probe) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{gatherer: gatherer, probes: probes}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

type healthResponse struct {
	Status      string             `json:"status"`
	Collections []CollectionStatus `json:"collections"`
}

// handleHealth answers 200 while every collection is in sync and 503 when
// any of them holds an error from its last operation.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Collections: make([]CollectionStatus, 0, len(s.probes))}
	for _, probe := range s.probes {
		collection := probe()
		if collection.Error != "" {
			resp.Status = "degraded"
		}
		resp.Collections = append(resp.Collections, collection)
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
