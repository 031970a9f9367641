// Package api exposes the HTTP control surface and the WebSocket event
// stream. Every trading action goes through these endpoints; the stream
// is a read-only mirror of what the engine and scheduler do.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
)

// Server wires the handlers and hub into an http.Server.
type Server struct {
	httpServer *http.Server
	hub        *Hub
	logger     *slog.Logger
}

func NewServer(cfg config.ServerConfig, h *Handlers, hub *Hub, logger *slog.Logger) *Server {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginChecker(cfg.AllowedOrigins),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("POST /scan", h.HandleScan)
	mux.HandleFunc("POST /run", h.HandleRun)
	mux.HandleFunc("GET /config", h.HandleGetConfig)
	mux.HandleFunc("PUT /config", h.HandlePutConfig)
	mux.HandleFunc("POST /scheduler/start", h.HandleSchedulerStart)
	mux.HandleFunc("POST /scheduler/stop", h.HandleSchedulerStop)
	mux.HandleFunc("GET /scheduler/status", h.HandleSchedulerStatus)
	mux.HandleFunc("GET /scheduler/history", h.HandleSchedulerHistory)
	mux.HandleFunc("GET /ws", h.HandleWS(upgrader))

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: mux,
			// No WriteTimeout: /run and /scan hold the connection for a
			// full trading cycle, and /ws streams indefinitely.
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		hub:    hub,
		logger: logger.With("component", "server"),
	}
}

// Start runs the hub and serves until Stop or a listener error.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("control surface listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests, bounded at ten seconds.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("control surface shutting down")
	return s.httpServer.Shutdown(ctx)
}
