package command

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yndnr/mtlsclient-go/internal/infra/credwatch"
	"github.com/yndnr/mtlsclient-go/internal/telemetry/metric"
)

// adminHandler serves the watch mode admin endpoints.
type adminHandler struct {
	watcher  *credwatch.Watcher
	registry *metric.Registry
	log      *slog.Logger
}

// router returns the admin routes:
//
//	GET  /healthz      current build summary
//	GET  /credentials  current credential store entries
//	POST /reload       rebuild immediately
//	GET  /metrics      Prometheus metrics
func (h *adminHandler) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.handleHealth)
	r.Get("/credentials", h.handleCredentials)
	r.Post("/reload", h.handleReload)
	r.Method(http.MethodGet, "/metrics", h.registry.Handler())
	return r
}

func (h *adminHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("admin request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

func (h *adminHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	client := h.watcher.Current()
	body := map[string]any{
		"status":   "ok",
		"build_id": client.BuildID,
		"mode":     client.Mode,
	}
	if km := client.KeyManager; km != nil {
		notAfter := km.Leaf().NotAfter
		body["client_not_after"] = notAfter.UTC().Format(time.RFC3339)
		if time.Now().After(notAfter) {
			body["status"] = "expired"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *adminHandler) handleCredentials(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, inspectClient(h.watcher.Current()))
}

func (h *adminHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.watcher.Reload(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"build_id": h.watcher.Current().BuildID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
