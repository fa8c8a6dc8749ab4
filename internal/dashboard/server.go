// Package dashboard serves the latest analytics report as a JSON API.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_dashboard/internal/analytics"
	"github.com/eddiefleurent/options_dashboard/internal/report"
)

// ErrUnknownFile is returned by a Refresher for a statement file it does not serve.
var ErrUnknownFile = errors.New("unknown statement file")

// Refresher recomputes the report on demand.
type Refresher interface {
	// Refresh rebuilds the report from the named statement file, or the
	// configured default when file is empty.
	Refresh(ctx context.Context, file string) (*analytics.Report, error)
	// Files lists the statement files available for refresh.
	Files() ([]string, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	store     report.Store
	refresher Refresher
	logger    *logrus.Logger
	port      int
	authToken string
}

// Config holds the HTTP settings.
type Config struct {
	Port      int
	AuthToken string
}

// NewServer creates a Server. refresher may be nil, which disables refresh
// and file listing.
func NewServer(cfg Config, store report.Store, refresher Refresher, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		store:     store,
		refresher: refresher,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/report/{section}", s.handleReportSection)
		r.Get("/history", s.handleHistory)
		r.Get("/files", s.handleFiles)
		r.Post("/refresh", s.handleRefresh)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	if r, err := s.store.Latest(); err == nil {
		health["report_id"] = r.ID
		health["report_generated_at"] = r.GeneratedAt
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	rep, ok := s.latest(w)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportSection(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.latest(w)
	if !ok {
		return
	}

	var body interface{}
	switch section := chi.URLParam(r, "section"); section {
	case "trading":
		body = rep.Trading
	case "trades":
		body = rep.Trades
	case "complex-trades":
		body = rep.ComplexTrades
	case "option-summary":
		body = rep.OptionSummary
	case "positions":
		body = rep.Positions
	case "risk":
		body = rep.Risk
	case "concentration":
		body = rep.Concentration
	case "itm":
		body = rep.ITM
	case "put-returns":
		body = rep.PutReturns
	case "market":
		body = rep.Market
	case "allocation":
		if rep.Allocation == nil {
			s.writeError(w, http.StatusNotFound, "allocation unavailable: volatility index not resolved")
			return
		}
		body = rep.Allocation
	default:
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown report section %q", section))
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.History())
}

func (s *Server) handleFiles(w http.ResponseWriter, _ *http.Request) {
	if s.refresher == nil {
		s.writeError(w, http.StatusNotImplemented, "refresh is not configured")
		return
	}
	files, err := s.refresher.Files()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list statement files")
		s.writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	if files == nil {
		files = []string{}
	}
	s.writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.writeError(w, http.StatusNotImplemented, "refresh is not configured")
		return
	}
	file := r.URL.Query().Get("file")
	rep, err := s.refresher.Refresh(r.Context(), file)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, report.Summarize(rep))
	case errors.Is(err, ErrUnknownFile):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, analytics.ErrInvalidInput):
		s.logger.WithError(err).WithField("file", file).Warn("Refresh rejected invalid input")
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.WithError(err).WithField("file", file).Error("Refresh failed")
		s.writeError(w, http.StatusInternalServerError, "refresh failed")
	}
}

func (s *Server) latest(w http.ResponseWriter) (*analytics.Report, bool) {
	rep, err := s.store.Latest()
	if errors.Is(err, report.ErrNoReport) {
		s.writeError(w, http.StatusServiceUnavailable, "no report computed yet")
		return nil, false
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load report")
		s.writeError(w, http.StatusInternalServerError, "failed to load report")
		return nil, false
	}
	return rep, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
