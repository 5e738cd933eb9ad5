package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/rentdesk/realtime/internal/auth"
	"github.com/rentdesk/realtime/internal/config"
	"github.com/rentdesk/realtime/internal/database"
	"github.com/rentdesk/realtime/internal/gateway"
)

type Server struct {
	log            *log.Logger
	repo           database.Repository
	gateway        *gateway.Gateway
	bridge         *gateway.Bridge
	verifier       auth.TokenVerifier
	mux            *http.Server
	allowedOrigins []string
}

func NewServer(mux *http.ServeMux, logger *log.Logger, gw *gateway.Gateway, bridge *gateway.Bridge,
	repo database.Repository, verifier auth.TokenVerifier, cfg *config.Config) *Server {

	s := &Server{
		log:            logger,
		repo:           repo,
		gateway:        gw,
		bridge:         bridge,
		verifier:       verifier,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("GET /ws", s.serveWs)
	mux.Handle("GET /api/chat/history", s.authMiddleware(s.chatHistory))
	mux.Handle("GET /api/chat/unread", s.authMiddleware(s.unreadCount))
	mux.Handle("GET /api/notifications", s.authMiddleware(s.notifications))

	// service-to-service ingress for the notification bridge
	mux.Handle("POST /internal/notifications", s.authMiddleware(s.pushNotification))
	mux.Handle("POST /internal/maintenance-updates", s.authMiddleware(s.maintenanceUpdate))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *Server) Start() error {
	s.log.Printf("Starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Println("Shutting down server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Println("Server shutdown complete")
	return nil
}
