// Package server exposes the runtime's control and observability
// surface over HTTP. The server owns no pipeline state: it holds read
// references to the metrics collector, the auth manager, the log ring
// and a runtime-control facade over the scheduler.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rakunlabs/ada"
	"github.com/rakunlabs/edgeflow/internal/auth"
	"github.com/rakunlabs/edgeflow/internal/config"
	"github.com/rakunlabs/edgeflow/internal/engine"
	"github.com/rakunlabs/edgeflow/internal/logbuf"
	"github.com/rakunlabs/edgeflow/internal/metrics"

	mfolder "github.com/rakunlabs/ada/handler/folder"
	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"
)

type Server struct {
	config config.Server

	server *ada.Server

	auth      *auth.Manager
	collector *metrics.Collector
	ctrl      *engine.Controller
	ring      *logbuf.Ring

	// dashboardMu serializes concurrent dashboard config writes; the
	// atomic rename makes each write all-or-nothing on disk.
	dashboardMu sync.Mutex
}

func New(cfg config.Server, am *auth.Manager, collector *metrics.Collector, ctrl *engine.Controller, ring *logbuf.Ring) (*Server, error) {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(config.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
		mtelemetry.Middleware(),
		timeoutMiddleware(config.Duration(cfg.RequestTimeout, 30*time.Second)),
	)

	s := &Server{
		config:    cfg,
		server:    mux,
		auth:      am,
		collector: collector,
		ctrl:      ctrl,
		ring:      ring,
	}

	baseGroup := mux.Group(cfg.BasePath)
	apiGroup := baseGroup.Group("/api")

	// Login is the only unauthenticated API endpoint.
	apiGroup.POST("/auth/login", s.LoginAPI)

	protected := apiGroup.Group("")
	protected.Use(s.authMiddleware())

	protected.GET("/auth/validate", s.ValidateAPI)
	protected.POST("/auth/logout", s.LogoutAPI)

	protected.GET("/dashboard/config", s.GetDashboardAPI)
	protected.POST("/dashboard/config", s.SaveDashboardAPI)

	protected.GET("/blocks", s.ListBlocksAPI)

	protected.GET("/metrics", s.MetricsAPI)
	protected.POST("/metrics/reset", s.ResetMetricsAPI)

	protected.GET("/logs", s.LogsAPI)

	protected.GET("/runtime/status", s.RuntimeStatusAPI)
	protected.POST("/runtime/start", s.RuntimeStartAPI)
	protected.POST("/runtime/stop", s.RuntimeStopAPI)
	protected.POST("/runtime/restart", s.RuntimeRestartAPI)

	// Static web bundle, served without auth.
	folderM, err := mfolder.New(&mfolder.Config{
		BasePath:       cfg.BasePath,
		Index:          true,
		StripIndexName: true,
		SPA:            true,
		PrefixPath:     cfg.BasePath,
		CacheRegex: []*mfolder.RegexCacheStore{
			{
				Regex:        `index\.html$`,
				CacheControl: "no-store",
			},
		},
	})
	if err != nil {
		return nil, err
	}

	folderM.SetFs(http.FS(os.DirFS(cfg.WebDir)))

	baseGroup.Handle("/*", folderM)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	return s.server.StartWithContext(ctx, net.JoinHostPort(s.config.Host, s.config.Port))
}

// authMiddleware requires a valid "Authorization: Bearer <token>"
// header on every request of the group.
func (s *Server) authMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.auth.Validate(bearerToken(r)) {
				httpError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// timeoutMiddleware bounds request handling with a context deadline.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
