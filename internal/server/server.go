// Package server exposes the scheduler over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/tourdesk/internal/booking"
	"github.com/example/tourdesk/internal/dispatch"
	"github.com/example/tourdesk/internal/maintenance"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Booking    *booking.Service
	Dispatcher *dispatch.Dispatcher
	Sweeper    *maintenance.Sweeper
	Port       int
	Out        io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Booking == nil || opts.Dispatcher == nil || opts.Sweeper == nil {
		return fmt.Errorf("server: booking, dispatcher and sweeper are required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts.Booking, opts.Dispatcher, opts.Sweeper)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Tourdesk API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin engine with all routes registered.
func NewRouter(svc *booking.Service, d *dispatch.Dispatcher, sweeper *maintenance.Sweeper) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, svc, d, sweeper)
	return router
}
