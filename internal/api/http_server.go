package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Services are the application services the HTTP API exposes.
type Services struct {
	Booking  domain.BookingService
	Calendar domain.CalendarService
	Chat     domain.ChatService
	// Ready reports store health for /readyz.
	Ready func(ctx context.Context) error
	// Capacity colours the export workbook.
	Capacity int
}

// HTTPServer serves the JSON booking API.
type HTTPServer struct {
	cfg      config.APIConfig
	services Services
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, services Services, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{cfg: cfg, services: services, auth: NewHTTPAuth(cfg), logger: base}

	handler := chain(srv.routes(),
		withCORS(cfg.HTTP.AllowedOrigins),
		withRequestID,
		withTimeout(time.Duration(cfg.RequestTimeout)*time.Second),
		withAccessLog(&srv.logger),
		srv.auth.Wrap,
	)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(handler, "salonbook-http"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.RequestTimeout+15) * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /chatbot", s.handleChat)

	mux.HandleFunc("GET /appointments", s.handleListAppointments)
	mux.HandleFunc("GET /appointments/export", s.handleExport)
	mux.HandleFunc("DELETE /appointments/{id}", s.handleDeleteAppointment)
	mux.HandleFunc("GET /availability", s.handleAvailability)
	mux.HandleFunc("GET /slots", s.handleSlots)

	mux.HandleFunc("GET /hours", s.handleListHours)
	mux.HandleFunc("PUT /hours/{dow}", s.handlePutHours)
	mux.HandleFunc("DELETE /hours/{dow}", s.handleDeleteHours)
	mux.HandleFunc("GET /blackouts", s.handleListBlackouts)
	mux.HandleFunc("PUT /blackouts/{date}", s.handlePutBlackout)
	mux.HandleFunc("DELETE /blackouts/{date}", s.handleDeleteBlackout)

	return mux
}

// Handler exposes the full middleware stack, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

const internalErrorMessage = "Something went wrong"

// internalError logs the cause and answers with a generic 500.
func (s *HTTPServer) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).
		Str("request_id", RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, internalErrorMessage)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
