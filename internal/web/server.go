package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server wraps the status HTTP server. It is off by default; when
// enabled it binds to localhost unless configured otherwise.
type Server struct {
	handler *Handler
	server  *http.Server
	log     zerolog.Logger
}

func NewServer(d Deps) *Server {
	handler := NewHandler(d)
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", d.Config.Web.Host, d.Config.Web.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		handler: handler,
		server:  httpServer,
		log:     d.Log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", "http://"+s.server.Addr).Msg("starting status web server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down status web server")
	return s.server.Shutdown(ctx)
}

func (s *Server) Address() string {
	return s.server.Addr
}
