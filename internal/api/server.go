// Package api provides the HTTP server for the studio.
// It exposes the orchestration layer's state and operations to UI consumers
// as JSON, plus a live notification stream over SSE.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/app/studio"
	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/logging"
)

// maxBodyBytes bounds request bodies. Ad requests may carry an inline image.
const maxBodyBytes = 8 << 20

// requestTimeout bounds non-generation requests.
const requestTimeout = time.Minute

// Server is the studio HTTP API server.
type Server struct {
	app            *studio.App
	log            *logrus.Entry
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(app *studio.App, log *logrus.Entry) *Server {
	return &Server{app: app, log: logging.OrDiscard(log)}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	// Generation routes and the live feed are not bounded by the request
	// timeout; everything else is.
	timed := middleware.Timeout(requestTimeout)

	r.Route("/api/session", func(r chi.Router) {
		r.Use(timed)
		r.Get("/", s.handleSession)
		r.Post("/", s.handleSignIn)
		r.Delete("/", s.handleSignOut)
	})

	r.Route("/api/credits", func(r chi.Router) {
		r.Use(timed)
		r.Get("/", s.handleCredits)
		r.Post("/refresh", s.handleCreditsRefresh)
		r.Post("/grant", s.handleCreditsGrant)
		r.Post("/checkout", s.handleCheckout)
		r.Post("/complete", s.handleCheckoutComplete)
	})

	r.Route("/api/tools", func(r chi.Router) {
		r.With(timed).Get("/", s.handleTools)
		r.With(timed).Get("/{id}", s.handleToolState)
		r.Post("/{id}/submit", s.handleToolSubmit)
		r.With(timed).Post("/{id}/save", s.handleToolSave)
		r.With(timed).Post("/{id}/prefill", s.handleToolPrefill)
	})
	r.Post("/api/ads/{id}", s.handleGenerateAd)
	r.With(timed).Get("/api/results/{id}", s.handleResults)

	r.Route("/api/calendar", func(r chi.Router) {
		r.With(timed).Get("/", s.handleCalendar)
		r.With(timed).Post("/load", s.handleCalendarLoad)
		r.With(timed).Get("/days/{day}", s.handleCalendarDay)
		r.With(timed).Post("/days/{day}/prefill-video", s.handlePrefillVideo)
		r.Post("/days/{day}/video", s.handleRegenerateVideo)
	})

	r.Route("/api/notifications", func(r chi.Router) {
		r.With(timed).Get("/", s.handleNotifications)
		r.With(timed).Delete("/{id}", s.handleDismiss)
		r.Get("/live", s.handleNotificationsSSE)
	})

	r.With(timed).Post("/api/profile/reload", s.handleProfileReload)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a layer error onto an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Warn("request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrUnknownTool),
		errors.Is(err, domain.ErrDayOutOfRange),
		errors.Is(err, domain.ErrNoEntry):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSuperseded),
		errors.Is(err, domain.ErrReloadInProgress),
		errors.Is(err, domain.ErrNoResult):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBackend),
		errors.Is(err, domain.ErrDeductionFailed),
		errors.Is(err, domain.ErrCalendarPersist),
		errors.Is(err, domain.ErrMalformedData):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads an optional JSON body into v. An empty body is not an
// error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func intParam(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	return n, err == nil
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
