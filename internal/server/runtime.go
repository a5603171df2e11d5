package server

import "net/http"

// RuntimeStatusAPI handles GET /api/runtime/status.
func (s *Server) RuntimeStatusAPI(w http.ResponseWriter, _ *http.Request) {
	httpResponseJSON(w, s.ctrl.Status(), http.StatusOK)
}

// RuntimeStartAPI handles POST /api/runtime/start. The transition is
// asynchronous; 202 only acknowledges the request.
func (s *Server) RuntimeStartAPI(w http.ResponseWriter, _ *http.Request) {
	go s.ctrl.Start()
	httpResponse(w, "starting", http.StatusAccepted)
}

// RuntimeStopAPI handles POST /api/runtime/stop.
func (s *Server) RuntimeStopAPI(w http.ResponseWriter, _ *http.Request) {
	go s.ctrl.Stop()
	httpResponse(w, "stopping", http.StatusAccepted)
}

// RuntimeRestartAPI handles POST /api/runtime/restart.
func (s *Server) RuntimeRestartAPI(w http.ResponseWriter, _ *http.Request) {
	go s.ctrl.Restart()
	httpResponse(w, "restarting", http.StatusAccepted)
}
