package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raidwatch/raidwatch/internal/alerts"
	"github.com/raidwatch/raidwatch/internal/config"
	"github.com/raidwatch/raidwatch/internal/monitoring"
	"github.com/raidwatch/raidwatch/internal/websocket"
	"github.com/rs/zerolog/log"
)

// Router handles HTTP routing.
type Router struct {
	mux          *http.ServeMux
	config       *config.Config
	monitor      *monitoring.Monitor
	alertManager *alerts.Manager
	wsHub        *websocket.Hub
	startTime    time.Time
}

// NewRouter wires all HTTP endpoints.
func NewRouter(cfg *config.Config, monitor *monitoring.Monitor, alertManager *alerts.Manager, wsHub *websocket.Hub) http.Handler {
	r := &Router{
		mux:          http.NewServeMux(),
		config:       cfg,
		monitor:      monitor,
		alertManager: alertManager,
		wsHub:        wsHub,
		startTime:    time.Now(),
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/api/v1/server/status", r.handleServerStatus)
	r.mux.HandleFunc("/api/v1/server/refresh", r.handleRefresh)
	r.mux.HandleFunc("/api/v1/alerts", r.handleAlerts)
	r.mux.HandleFunc("/api/v1/alerts/", r.handleAlertAction)
	r.mux.HandleFunc("/health", r.handleHealth)
	r.mux.Handle("/metrics", promhttp.Handler())

	if r.wsHub != nil {
		r.mux.HandleFunc("/ws", r.wsHub.HandleWebSocket)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/api/") {
		w.Header().Set("X-Content-Type-Options", "nosniff")
	}

	start := time.Now()
	r.mux.ServeHTTP(w, req)
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
}
