package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderfilter/internal/domain"
	"github.com/kailas-cloud/tenderfilter/internal/domain/query"
	logpkg "github.com/kailas-cloud/tenderfilter/internal/logger"
	filteruc "github.com/kailas-cloud/tenderfilter/internal/usecase/filter"
	healthuc "github.com/kailas-cloud/tenderfilter/internal/usecase/health"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the tender filter HTTP API.
type Server struct {
	filter        *filteruc.Service
	health        *healthuc.Service
	accessURL     string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. accessURL is attached to 403 answers when non-empty.
func NewServer(
	filter *filteruc.Service,
	health *healthuc.Service,
	accessURL string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		filter:    filter,
		health:    health,
		accessURL: accessURL,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(query.ErrTooLong, http.StatusBadRequest, MsgQueryTooLong, nil),
		sentinelHandler(domain.ErrQueryRequired, http.StatusBadRequest, MsgQueryRequired, nil),
		sentinelHandler(domain.ErrSubscriptionRequired, http.StatusForbidden, MsgSubscriptionMissing, s.accessInfo()),
		sentinelHandler(domain.ErrSubscriptionNotFound, http.StatusForbidden, MsgSubscriptionInactive, s.accessInfo()),
	}
	return s
}

// Routes registers the API endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/api/filter", s.FilterTenders)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// FilterTenders handles GET /api/filter.
func (s *Server) FilterTenders(w http.ResponseWriter, r *http.Request) {
	params, err := bindFilterTendersParams(r)
	if err != nil {
		logpkg.FromContext(r.Context()).Debug("invalid query parameters", zap.Error(err))
		writeError(w, http.StatusBadRequest, MsgQueryRequired, nil)
		return
	}

	res, err := s.filter.Filter(r.Context(), deref(params.Query), deref(params.UserID))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, FilterTendersResponse{
		Success:         true,
		Query:           res.Query,
		Threshold:       res.Threshold,
		ResultsCount:    res.Total,
		FilteredTenders: res.Tenders,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) accessInfo() *ErrorInfo {
	if s.accessURL == "" {
		return nil
	}
	return &ErrorInfo{AccessURL: s.accessURL}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, info *ErrorInfo) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Info:  info,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, message string, info *ErrorInfo) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, message, info)
		return true
	}
}

// handleDomainError maps err to a response. Details are logged, never returned.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Info("request rejected", zap.Error(err))
			return
		}
	}
	log.Error("Filtering error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, MsgInternal, nil)
}
