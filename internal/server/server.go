package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/chat"
	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/events"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
)

// Server is the HTTP boundary of the gateway
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	service *chat.Service
	hub     *events.Hub
	router  *mux.Router
	server  *http.Server
	limiter *clientLimiter
}

// New creates a new gateway server instance
func New(cfg *config.Config, service *chat.Service, hub *events.Hub, log *logger.Logger) *Server {
	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		service: service,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newClientLimiter(cfg.RateLimit)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoint stays outside the middleware chain
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.hub != nil && s.config.Events.Enabled {
		s.router.HandleFunc(s.config.Events.Path, s.hub.ServeHTTP).Methods("GET")
	}

	llm := s.router.PathPrefix("/llm").Subrouter()
	llm.Use(s.recoveryMiddleware)
	llm.Use(s.loggingMiddleware)
	if s.limiter != nil {
		llm.Use(s.rateLimitMiddleware)
	}
	llm.HandleFunc("/textchat", s.handleTextChat).Methods("POST")
	llm.HandleFunc("/docchat", s.handleDocChat).Methods("POST")
	llm.HandleFunc("/provideddocchat", s.handleProvidedDocChat).Methods("POST")
	llm.HandleFunc("/codechat", s.handleCodeChat).Methods("POST")

	agent := s.router.PathPrefix("/agent-builder").Subrouter()
	agent.Use(s.recoveryMiddleware)
	agent.Use(s.loggingMiddleware)
	if s.limiter != nil {
		agent.Use(s.rateLimitMiddleware)
	}
	agent.HandleFunc("/grounded-response", s.handleGroundedChat).Methods("POST")
	agent.HandleFunc("/multiturn-search", s.handleMultiTurnSearch).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting gateway server",
		zap.Int("port", s.config.Server.Port),
		zap.Strings("regions", s.config.Generation.Regions),
	)

	if s.hub != nil && s.config.Events.Enabled {
		go s.hub.Run()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping gateway server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"OK","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}
