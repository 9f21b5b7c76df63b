// Package api exposes the aggregated listings over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rental-scraper/models"
	"rental-scraper/services"
	"rental-scraper/utils"
)

// SnapshotSource is the read side of the result cache.
type SnapshotSource interface {
	Get(ctx context.Context, force bool) (*models.Snapshot, error)
	Current() *models.Snapshot
}

// Handler serves the listings API.
type Handler struct {
	cache    SnapshotSource
	insights *services.InsightService
	gatherer prometheus.Gatherer
	logger   *utils.Logger
}

func NewHandler(cache SnapshotSource, insights *services.InsightService, gatherer prometheus.Gatherer, logger *utils.Logger) *Handler {
	return &Handler{cache: cache, insights: insights, gatherer: gatherer, logger: logger}
}

type sourcesResponse struct {
	CapturedAt *time.Time             `json:"captured_at"`
	Sources    []models.SourceOutcome `json:"sources"`
	Failed     int                    `json:"failed"`
}

type healthResponse struct {
	Status      string     `json:"status"`
	LastRefresh *time.Time `json:"last_refresh"`
}

// Router registers all routes on a new mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/api/listings", h.handleListings).Methods(http.MethodGet)
	r.HandleFunc("/api/sources", h.handleSources).Methods(http.MethodGet)
	r.HandleFunc("/api/insights", h.handleInsights).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

func (h *Handler) handleListings(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	snap, ok := h.snapshot(w, r, force)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSources(w http.ResponseWriter, _ *http.Request) {
	resp := sourcesResponse{Sources: []models.SourceOutcome{}}
	if snap := h.cache.Current(); snap != nil {
		captured := snap.CapturedAt
		resp.CapturedAt = &captured
		resp.Sources = append(resp.Sources, snap.Sources...)
		resp.Failed = len(snap.FailedSources())
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r, false)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.insights.Generate(snap.Listings))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if snap := h.cache.Current(); snap != nil {
		captured := snap.CapturedAt
		resp.LastRefresh = &captured
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// snapshot fetches the cached snapshot, writing an error response when the
// client went away before a first snapshot existed.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request, force bool) (*models.Snapshot, bool) {
	snap, err := h.cache.Get(r.Context(), force)
	if snap == nil {
		msg := "no snapshot available yet"
		if err != nil {
			msg = err.Error()
		}
		http.Error(w, msg, http.StatusServiceUnavailable)
		return nil, false
	}
	if err != nil {
		h.logger.Warn("[api] Serving stale snapshot %s: %v", snap.RunID, err)
	}
	return snap, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("[api] Encode response: %v", err)
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("[api] %s %s (%v)", r.Method, r.URL.RequestURI(), time.Since(start).Round(time.Millisecond))
	})
}
