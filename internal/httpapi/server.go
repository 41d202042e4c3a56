package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vramd/internal/ledger"
	"vramd/internal/scheduler"
	"vramd/pkg/types"
)

// Service defines the scheduler methods required by the HTTP API layer.
type Service interface {
	RequestLoad(ctx context.Context, modelID string) (scheduler.Outcome, error)
	NotifyInferenceDone(modelID string) error
	Sweep(ctx context.Context)
	Snapshot() types.SnapshotResponse
	Healthy(ctx context.Context) error
}

// NewMux builds the HTTP surface over the scheduler: load/done/sweep
// operations, the ledger snapshot, health and prometheus metrics.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/v1/load", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}
		start := time.Now()
		outcome, err := svc.RequestLoad(r.Context(), req.Model)
		if zlog != nil {
			z := zlog.Info().Str("model", req.Model).Str("outcome", string(outcome)).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Err(err).Msg("load request")
		}
		resp := types.LoadResponse{Model: req.Model, Outcome: string(outcome)}
		if err != nil {
			resp.Error = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case outcome == scheduler.OutcomeActive:
			w.WriteHeader(http.StatusOK)
		case outcome == scheduler.OutcomeQueued:
			IncrementBackpressure(BackpressureVRAM)
			w.WriteHeader(http.StatusTooManyRequests)
		case scheduler.IsModelNotFound(err):
			w.WriteHeader(http.StatusNotFound)
		case scheduler.IsModelTooLarge(err):
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		case scheduler.IsLoadFailed(err) || scheduler.IsPartialEvictionFailure(err):
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Post("/v1/done", func(w http.ResponseWriter, r *http.Request) {
		var req types.DoneRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}
		if err := svc.NotifyInferenceDone(req.Model); err != nil {
			if ledger.IsInvalidTransition(err) {
				writeJSONError(w, http.StatusConflict, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/v1/sweep", func(w http.ResponseWriter, r *http.Request) {
		svc.Sweep(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})

	r.Get("/v1/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Snapshot()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Healthy(r.Context()); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "lock store unreachable: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// decodeJSON enforces content type and body limits, writing the error
// response itself when decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
