package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server runs the query API as a registry service.
type Server struct {
	address         string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// NewServer creates a Server listening on address once started.
func NewServer(address string, handler http.Handler, shutdownTimeout time.Duration, logger zerolog.Logger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &Server{
		address:         address,
		handler:         handler,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Start binds the listener synchronously so address errors fail startup.
func (s *Server) Start() error {
	if s.httpServer != nil {
		s.logger.Warn().Msg("API server is already running")
		return errors.New("api server is already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("API server started successfully")
	return nil
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		s.logger.Warn().Msg("API server is not running")
		return errors.New("api server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	s.httpServer = nil
	s.listener = nil

	if err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info().Msg("API server stopped successfully")
	return nil
}

// Addr returns the bound address, or "" when stopped.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
