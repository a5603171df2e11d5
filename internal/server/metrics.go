package server

import "net/http"

// MetricsAPI handles GET /api/metrics: the serialized collector
// snapshot.
func (s *Server) MetricsAPI(w http.ResponseWriter, _ *http.Request) {
	httpResponseJSON(w, s.collector.Snapshot(), http.StatusOK)
}

// ResetMetricsAPI handles POST /api/metrics/reset. A "block" query
// parameter resets a single block; without it the whole table clears.
func (s *Server) ResetMetricsAPI(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("block"); id != "" {
		s.collector.ResetBlock(id)
	} else {
		s.collector.Reset()
	}

	w.WriteHeader(http.StatusNoContent)
}
