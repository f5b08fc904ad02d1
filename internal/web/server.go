// Package web serves the collector HTTP surface and streams harvest
// events over WebSocket.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config holds server configuration
type Config struct {
	Port int
}

// Server represents the HTTP server
type Server struct {
	handler    http.Handler
	httpServer *http.Server
	config     *Config
	listener   net.Listener
	ready      chan struct{}
}

// NewServer creates a new HTTP server for handler.
func NewServer(cfg *Config, handler http.Handler) *Server {
	return &Server{
		handler: handler,
		config:  cfg,
		ready:   make(chan struct{}),
	}
}

// Start listens on the configured port and serves until Stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	close(s.ready)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Ready is closed once the server listens.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// BaseURL returns the server's base URL
func (s *Server) BaseURL() string {
	if s.listener != nil {
		return fmt.Sprintf("http://%s", s.listener.Addr().String())
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}
