package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	log  *slog.Logger
	cfg  Config
	view *SnapshotView
}

func NewHandler(log *slog.Logger, cfg Config, view *SnapshotView) *Handler {
	return &Handler{log: log, cfg: cfg, view: view}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.healthzHandler)
	mux.HandleFunc("/readyz", h.readyzHandler)
	mux.HandleFunc("/snapshots/latest", h.latestHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("server: failed to write response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"error": msg})
}

func (h *Handler) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func (h *Handler) retryAfter(w http.ResponseWriter) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", max(int(h.cfg.RefreshInterval.Seconds()), 1)))
}

func (h *Handler) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}
	if !h.view.Ready() {
		h.retryAfter(w)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (h *Handler) latestHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}
	grouped := false
	if v := r.URL.Query().Get("grouped"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeJSONError(w, http.StatusBadRequest, "invalid grouped parameter")
			return
		}
		grouped = b
	}

	report, ok := h.view.Report(grouped)
	if !ok {
		h.retryAfter(w)
		h.writeJSONError(w, http.StatusServiceUnavailable, "no recent snapshot analysis")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
