// Package api exposes the HTTP surface of WhatsBill: a synchronous /chat
// endpoint for driving conversation turns, the Twilio inbound webhook, and
// a health probe.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/chat"
	"github.com/xKrishnaSaxena/WhatsBill/internal/messaging"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server wires the orchestrator and the messaging service behind HTTP
// handlers.
type Server struct {
	orchestrator *chat.Orchestrator
	msgService   messaging.Service
	addr         string
	httpServer   *http.Server
}

// NewServer creates an API server. The messaging service may be nil when
// the deployment has no inbound webhook to mount.
func NewServer(orchestrator *chat.Orchestrator, msgService messaging.Service, opts ...Option) *Server {
	var options Opts
	for _, opt := range opts {
		opt(&options)
	}
	if options.Addr == "" {
		options.Addr = DefaultAddr
	}
	return &Server{
		orchestrator: orchestrator,
		msgService:   msgService,
		addr:         options.Addr,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/health", s.healthHandler)
	if ts, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", ts.WebhookHandler)
		slog.Info("Server.Handler: Twilio webhook mounted", "path", "/webhook/twilio")
	}
	return mux
}

// Run serves HTTP until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
