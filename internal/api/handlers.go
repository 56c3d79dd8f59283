package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleServerStatus serves the cached snapshot. It never blocks on the
// upstream controller; before the first poll it returns the disconnected
// placeholder. Alerts are attached at read time so acknowledgements made
// between cycles show up without waiting for the next poll.
func (r *Router) handleServerStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snapshot := r.monitor.GetSnapshot()
	writeJSON(w, http.StatusOK, snapshot.WithAlerts(r.alertManager.Active()))
}

// handleRefresh runs (or joins) a refresh cycle and returns that cycle's
// snapshot. A failed cycle still publishes a snapshot; it is returned
// alongside a gateway error status so callers see both.
func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot, err := r.monitor.RequestRefresh(req.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    err.Error(),
			"snapshot": snapshot,
		})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *Router) handleAlerts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": r.alertManager.Active(),
	})
}

// handleAlertAction routes /api/v1/alerts/{id}/acknowledge. Acknowledging is
// idempotent; an unknown id is not-found, never a server fault.
func (r *Router) handleAlertAction(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/api/v1/alerts/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "acknowledge" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	alertID := parts[0]
	if alertID == "" {
		writeError(w, http.StatusBadRequest, "alert id required")
		return
	}

	if !r.alertManager.Acknowledge(alertID) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot := r.monitor.GetSnapshot()
	health := map[string]any{
		"status":     "healthy",
		"connection": snapshot.ConnectionStatus,
		"lastUpdate": snapshot.LastUpdate,
		"uptime":     time.Since(r.startTime).Seconds(),
		"timestamp":  time.Now().Unix(),
	}
	if r.wsHub != nil {
		health["wsClients"] = r.wsHub.ClientCount()
	}
	writeJSON(w, http.StatusOK, health)
}
