package server

import (
	"net/http"
	"strconv"

	"github.com/rakunlabs/edgeflow/internal/logbuf"
)

// defaultLogLimit applies when the limit query parameter is absent.
const defaultLogLimit = 100

// logsResponse wraps the captured records for JSON output.
type logsResponse struct {
	Logs []logbuf.Record `json:"logs"`
}

// LogsAPI handles GET /api/logs?limit=&level=: the newest records from
// the in-memory ring, filtered by minimum level.
func (s *Server) LogsAPI(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpError(w, "HttpClientError", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records := s.ring.List(limit, logbuf.ParseLevel(r.URL.Query().Get("level")))
	if records == nil {
		records = []logbuf.Record{}
	}

	httpResponseJSON(w, logsResponse{Logs: records}, http.StatusOK)
}
