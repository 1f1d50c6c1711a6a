// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"healthara/internal/advisor"
	"healthara/internal/config"
	"healthara/internal/health"
	"healthara/internal/models"
	"healthara/internal/session"
	"healthara/internal/storage"
)

const Version = "1.0.0"

type HealthServer struct {
	session    *session.Session
	httpServer *http.Server
	archive    *storage.Archive
	metrics    *Metrics
	registry   *prometheus.Registry
	config     *config.Config
}

// NewHealthServer wires storage, the food catalog and the advisor client
// into a session and serves it over HTTP.
func NewHealthServer(cfg *config.Config) (*HealthServer, error) {
	store := storage.NewProfileStore(cfg.Storage.ProfilePath)

	var archive *storage.Archive
	if cfg.Storage.DBPath != "" {
		a, err := storage.NewArchive(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
		archive = a
	}

	catalog, err := health.LoadCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		if archive != nil {
			archive.Close()
		}
		return nil, err
	}

	builder := health.NewBuilder()
	builder.Model = cfg.Advisor.Model
	builder.MaxTokens = cfg.Advice.MaxTokens
	builder.Temperature = cfg.Advice.Temperature
	builder.HistoryLimit = cfg.Advice.HistoryLimit
	builder.MaxEntryRunes = cfg.Advice.MaxEntryRunes
	builder.MaxContextRunes = cfg.Advice.MaxContextRunes

	if cfg.Advisor.APIKey == "" {
		log.Warn().Msg("AZURE_OPENAI_API_KEY not set; chat requests will fail until it is configured")
	}
	client := advisor.NewClient(advisor.Config{
		Endpoint:   cfg.Advisor.Endpoint,
		APIKey:     cfg.Advisor.APIKey,
		Deployment: cfg.Advisor.Deployment,
		APIVersion: cfg.Advisor.APIVersion,
		Model:      cfg.Advisor.Model,
		Timeout:    cfg.Advisor.Timeout,
	})

	sess := session.New(session.Options{
		Store:   store,
		Archive: archive,
		Builder: builder,
		Catalog: catalog,
		Advisor: client,
	})

	srv := NewWithSession(cfg, sess)
	srv.archive = archive
	return srv, nil
}

// NewWithSession serves an already built session.
func NewWithSession(cfg *config.Config, sess *session.Session) *HealthServer {
	registry := prometheus.NewRegistry()
	s := &HealthServer{
		session:  sess,
		metrics:  NewMetrics(registry),
		registry: registry,
		config:   cfg,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full HTTP handler: routes, logging and CORS.
func (s *HealthServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.handlePutProfile).Methods(http.MethodPut)
	api.HandleFunc("/profile", s.handleDeleteProfile).Methods(http.MethodDelete)
	api.HandleFunc("/profile/personal", s.handleUpdatePersonal).Methods(http.MethodPut)
	api.HandleFunc("/profile/medical", s.handleUpdateMedical).Methods(http.MethodPut)
	api.HandleFunc("/profile/goals", s.handleUpdateGoals).Methods(http.MethodPut)
	api.HandleFunc("/profile/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/bmi", s.handleBMI).Methods(http.MethodGet)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleSaveConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	api.HandleFunc("/foods/check", s.handleCheckFoods).Methods(http.MethodPost)
	api.HandleFunc("/tips", s.handleTips).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/options", s.handleOptions).Methods(http.MethodGet)

	r.HandleFunc("/mcp", s.handleListTools).Methods(http.MethodGet)
	r.HandleFunc("/mcp", s.handleMCP).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.config.Server.Metrics {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

func (s *HealthServer) Start(ctx context.Context) error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting health advisor server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HealthServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.archive != nil {
		if cerr := s.archive.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func decodeBody(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return &badRequestError{err: err}
	}
	return nil
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "invalid JSON: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (s *HealthServer) writeError(w http.ResponseWriter, err error) {
	status, retryable := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error().Err(err).Msg("Request failed")
	}

	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		msg = "The advice service is temporarily unavailable. Please try again."
	}
	writeJSON(w, status, errorResponse{Error: msg, Retryable: retryable})
}

func statusFor(err error) (int, bool) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad), errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, false
	case errors.Is(err, models.ErrProfileNotFound), errors.Is(err, storage.ErrConversationNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, models.ErrArchiveDisabled):
		return http.StatusNotImplemented, false
	case advisor.IsRetryable(err):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, true
	default:
		return http.StatusInternalServerError, false
	}
}
