// Package server exposes a controller over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/controller"
)

// Navigator is implemented by targets that can load a URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Server routes HTTP requests to a controller.
type Server struct {
	ctrl   *controller.Controller
	nav    Navigator
	logger *zap.Logger
	router *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithNavigator enables POST /api/navigate.
func WithNavigator(n Navigator) Option {
	return func(s *Server) { s.nav = n }
}

// New returns a server for ctrl.
func New(ctrl *controller.Controller, opts ...Option) *Server {
	s := &Server{
		ctrl:   ctrl,
		logger: zap.NewNop(),
		router: mux.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/messages", s.handleMessage).Methods("POST")

	api.HandleFunc("/recording", s.action(controller.ActionStatus)).Methods("GET")
	api.HandleFunc("/recording/start", s.action(controller.ActionStartRecording)).Methods("POST")
	api.HandleFunc("/recording/pause", s.action(controller.ActionPauseRecording)).Methods("POST")
	api.HandleFunc("/recording/resume", s.action(controller.ActionResumeRecording)).Methods("POST")
	api.HandleFunc("/recording/stop", s.action(controller.ActionStopRecording)).Methods("POST")
	api.HandleFunc("/generate", s.action(controller.ActionGenerateCode)).Methods("POST")
	api.HandleFunc("/export", s.action(controller.ActionExport)).Methods("POST")

	api.HandleFunc("/debug", s.action(controller.ActionDebugState)).Methods("GET")
	api.HandleFunc("/debug", s.action(controller.ActionDebugClose)).Methods("DELETE")
	api.HandleFunc("/debug/{verb}", s.handleDebug).Methods("POST")

	api.HandleFunc("/flows", s.handleListFlows).Methods("GET")
	api.HandleFunc("/flows", s.action(controller.ActionSaveFlow)).Methods("POST")
	api.HandleFunc("/flows/{id}", s.handleFlow(controller.ActionGetFlow)).Methods("GET")
	api.HandleFunc("/flows/{id}", s.handleFlow(controller.ActionDeleteFlow)).Methods("DELETE")

	api.HandleFunc("/navigate", s.handleNavigate).Methods("POST")
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type NavigateRequest struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg controller.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, r, msg)
}

// action serves a fixed action; an optional JSON body fills the rest of the
// message.
func (s *Server) action(a controller.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, ok := decodeOptional(w, r)
		if !ok {
			return
		}
		msg.Action = a
		s.reply(w, r, msg)
	}
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	msg, ok := decodeOptional(w, r)
	if !ok {
		return
	}
	msg.Action = controller.Action("debug_" + mux.Vars(r)["verb"])
	s.reply(w, r, msg)
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	s.reply(w, r, controller.Message{
		Action: controller.ActionListFlows,
		Domain: r.URL.Query().Get("domain"),
	})
}

func (s *Server) handleFlow(a controller.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, r, controller.Message{Action: a, ID: mux.Vars(r)["id"]})
	}
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if s.nav == nil {
		writeError(w, http.StatusNotImplemented, errors.New("navigation not supported"))
		return
	}
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	if err := s.nav.Navigate(r.Context(), req.URL); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, controller.Reply{Success: true, Data: map[string]string{"url": req.URL}})
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, msg controller.Message) {
	data, err := s.ctrl.Do(r.Context(), msg)
	if err != nil {
		writeJSON(w, statusFor(err), controller.Reply{Success: false, Error: err.Error(), Data: data})
		return
	}
	writeJSON(w, http.StatusOK, controller.Reply{Success: true, Data: data})
}

func decodeOptional(w http.ResponseWriter, r *http.Request) (controller.Message, bool) {
	var msg controller.Message
	if r.Body == nil || r.ContentLength == 0 {
		return msg, true
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return msg, false
	}
	return msg, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
