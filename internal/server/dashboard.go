package server

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// maxDashboardBytes bounds the accepted layout blob.
const maxDashboardBytes = 1 << 20

// GetDashboardAPI handles GET /api/dashboard/config: the last saved
// layout blob, or the empty default when none was saved yet.
func (s *Server) GetDashboardAPI(w http.ResponseWriter, _ *http.Request) {
	s.dashboardMu.Lock()
	data, err := os.ReadFile(s.config.DashboardFile)
	s.dashboardMu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		httpResponseJSONByte(w, []byte("{}"), http.StatusOK)
		return
	}
	if err != nil {
		slog.Error("read dashboard config failed", "error", err)
		httpError(w, "DashboardReadFailed", http.StatusInternalServerError)
		return
	}

	httpResponseJSONByte(w, data, http.StatusOK)
}

// SaveDashboardAPI handles POST /api/dashboard/config: persists an
// arbitrary JSON blob atomically (write to a temp file, then rename).
func (s *Server) SaveDashboardAPI(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDashboardBytes))
	if err != nil {
		httpError(w, "HttpClientError", http.StatusBadRequest)
		return
	}

	if !json.Valid(data) {
		httpError(w, "HttpClientError", http.StatusBadRequest)
		return
	}

	s.dashboardMu.Lock()
	defer s.dashboardMu.Unlock()

	dir := filepath.Dir(s.config.DashboardFile)
	tmp, err := os.CreateTemp(dir, ".dashboard-*.json")
	if err != nil {
		slog.Error("create dashboard temp file failed", "error", err)
		httpError(w, "DashboardWriteFailed", http.StatusInternalServerError)
		return
	}

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		slog.Error("write dashboard config failed", "write", werr, "close", cerr)
		httpError(w, "DashboardWriteFailed", http.StatusInternalServerError)
		return
	}

	if err := os.Rename(tmp.Name(), s.config.DashboardFile); err != nil {
		os.Remove(tmp.Name())
		slog.Error("rename dashboard config failed", "error", err)
		httpError(w, "DashboardWriteFailed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
