// Package server contains the main server struct and methods
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/okinaau/iloader/api"
	"github.com/okinaau/iloader/api/server/routes"
	"github.com/okinaau/iloader/api/server/routes/operations"
	"github.com/okinaau/iloader/internal/commands/loader"
)

// Config is the server config
type Config struct {
	Host   string
	Port   int
	Socket string
	Debug  bool
}

// Server is the main server struct
type Server struct {
	router *gin.Engine
	server *http.Server
	conf   *Config
}

// NewServer creates a new server
func NewServer(conf *Config, svc *loader.Service) *Server {
	s := &Server{
		router: gin.New(),
		conf:   conf,
	}
	s.router.Use(gin.Recovery())
	if conf.Debug {
		s.router.Use(gin.Logger())
	}
	routes.Add(s.router.Group("/v"+api.DefaultVersion), svc, operations.NewStore())
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) listen() (net.Listener, error) {
	if s.conf.Socket != "" {
		if err := os.MkdirAll(filepath.Dir(s.conf.Socket), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create socket directory: %w", err)
		}
		if err := os.Remove(s.conf.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale socket %s: %w", s.conf.Socket, err)
		}
		return net.Listen("unix", s.conf.Socket)
	}
	return net.Listen("tcp", fmt.Sprintf("%s:%d", s.conf.Host, s.conf.Port))
}

// Start starts the server and blocks until it is stopped
func (s *Server) Start() error {
	l, err := s.listen()
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	log.WithField("addr", l.Addr().String()).Info("iloader daemon listening")
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if s.conf.Socket != "" {
		os.Remove(s.conf.Socket)
	}
	return err
}
