package api

import (
	"context"
	"errors"
	"faucetdrops/internal/cache"
	"faucetdrops/internal/dashboard"
	"faucetdrops/internal/ports"
	"faucetdrops/internal/types"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	maxBodyBytes    = 1 << 20
	defaultJobLimit = 20
	maxJobLimit     = 200

	// Largest expiresInMs that still fits a time.Duration.
	maxExpiresInMs = math.MaxInt64 / int64(time.Millisecond)
)

type DashboardService interface {
	Dashboard(ctx context.Context) (dashboard.Result[types.DashboardSnapshot], error)
	Claims(ctx context.Context) (dashboard.Result[[]types.ClaimRecord], error)
	TriggerRefresh(ctx context.Context, dataType types.DataType) (string, error)
}

type JobReader interface {
	GetJob(ctx context.Context, id string) (types.BackgroundJob, error)
	ListJobs(ctx context.Context, limit int) ([]types.BackgroundJob, error)
}

type Handler struct {
	Cache     ports.CacheStore
	Dashboard DashboardService
	Jobs      JobReader
}

func NewHandler(cs ports.CacheStore, svc DashboardService, jobs JobReader) *Handler {
	return &Handler{
		Cache:     cs,
		Dashboard: svc,
		Jobs:      jobs,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cache/{key}", h.handleCacheGet)
	mux.HandleFunc("POST /cache/{key}", h.handleCacheSet)
	mux.HandleFunc("DELETE /cache/{key}", h.handleCacheDelete)
	mux.HandleFunc("GET /analytics/dashboard", h.handleDashboard)
	mux.HandleFunc("POST /analytics/dashboard", h.handleDashboardRefresh)
	mux.HandleFunc("GET /analytics/claims", h.handleClaims)
	mux.HandleFunc("POST /background/refresh", h.handleRefresh)
	mux.HandleFunc("GET /background/jobs", h.handleListJobs)
	mux.HandleFunc("GET /background/jobs/{id}", h.handleGetJob)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := cache.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.Cache.Get(r.Context(), key)
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Cache miss")
		return
	}
	if err != nil {
		log.WithError(err).WithField("key", key).Error("cache read failed")
		writeError(w, http.StatusInternalServerError, "cache read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entry.Data, "cached": true})
}

type cacheSetRequest struct {
	Data        json.RawMessage `json:"data"`
	ExpiresInMs int64           `json:"expiresInMs"`
}

func (h *Handler) handleCacheSet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := cache.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req cacheSetRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Data) == 0 {
		writeError(w, http.StatusBadRequest, "missing data")
		return
	}
	if req.ExpiresInMs < 0 {
		writeError(w, http.StatusBadRequest, "expiresInMs must not be negative")
		return
	}
	if req.ExpiresInMs > maxExpiresInMs {
		writeError(w, http.StatusBadRequest, "expiresInMs out of range")
		return
	}
	if err := h.Cache.Set(r.Context(), key, req.Data, time.Duration(req.ExpiresInMs)*time.Millisecond); err != nil {
		log.WithError(err).WithField("key", key).Error("cache write failed")
		writeError(w, http.StatusInternalServerError, "cache write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := cache.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existed, err := h.Cache.Delete(r.Context(), key)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("cache delete failed")
		writeError(w, http.StatusInternalServerError, "cache delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": existed})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.Dashboard.Dashboard(r.Context())
	if err != nil {
		log.WithError(err).Error("dashboard request failed")
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleClaims(w http.ResponseWriter, r *http.Request) {
	res, err := h.Dashboard.Claims(r.Context())
	if err != nil {
		log.WithError(err).Error("claims request failed")
		writeError(w, http.StatusInternalServerError, "failed to load claims")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	h.triggerRefresh(w, r, types.DataDashboard)
}

type refreshRequest struct {
	DataType types.DataType `json:"dataType"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !readJSON(w, r, &req) {
		return
	}
	if _, err := req.DataType.JobType(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dataType")
		return
	}
	h.triggerRefresh(w, r, req.DataType)
}

func (h *Handler) triggerRefresh(w http.ResponseWriter, r *http.Request, dataType types.DataType) {
	id, err := h.Dashboard.TriggerRefresh(r.Context(), dataType)
	if errors.Is(err, types.ErrInvalidDataType) {
		writeError(w, http.StatusBadRequest, "Invalid dataType")
		return
	}
	if err != nil {
		log.WithError(err).WithField("dataType", dataType).Error("refresh not started")
		writeError(w, http.StatusInternalServerError, "failed to start refresh")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Background refresh started for " + string(dataType),
		"jobId":   id,
	})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.GetJob(r.Context(), r.PathValue("id"))
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("job read failed")
		writeError(w, http.StatusInternalServerError, "job read failed")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxJobLimit)
	}
	jobs, err := h.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		log.WithError(err).Error("job list failed")
		writeError(w, http.StatusInternalServerError, "job list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// readJSON decodes the request body into v, answering 400 itself when it cannot.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read error")
		return false
	}
	defer func() {
		_ = r.Body.Close()
	}()
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}
