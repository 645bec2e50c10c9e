// Package httpserver wires the GraphQL handler, the SDL endpoint, health and
// metrics into a gin router and runs it.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hanpama/structgraph/internal/config"
	"github.com/hanpama/structgraph/internal/logging"
	"github.com/hanpama/structgraph/internal/metrics"
)

// Config represents server configuration.
type Config struct {
	Addr            string
	ServiceName     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig reads the listen address from STRUCTGRAPH_ADDR.
func DefaultConfig(serviceName string) Config {
	return Config{
		Addr:            config.GetEnv(config.Prefix+"ADDR", ":8080"),
		ServiceName:     serviceName,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Routes is what the router serves.
type Routes struct {
	// SDL is returned by GET /sdl.
	SDL string
	// GraphQL serves /graphql for every method; it answers unsupported
	// methods itself.
	GraphQL http.Handler
	// Metrics is optional. When set, requests are measured and /metrics is
	// exposed.
	Metrics *metrics.Collector
}

// NewRouter creates a gin engine with the common middleware and routes.
func NewRouter(logger logging.Logger, serviceName string, routes Routes) *gin.Engine {
	if config.GetEnv("GIN_MODE", "debug") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RequestID())
	router.Use(Logging(logger))
	router.Use(Recovery(logger))
	if routes.Metrics != nil {
		router.Use(routes.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(routes.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})
	router.GET("/sdl", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(routes.SDL))
	})
	if routes.GraphQL != nil {
		router.Any("/graphql", gin.WrapH(routes.GraphQL))
	}
	return router
}

// Start listens on cfg.Addr and serves until ctx is cancelled.
func Start(ctx context.Context, cfg Config, handler http.Handler, logger logging.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return Serve(ctx, ln, cfg, handler, logger)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within cfg.ShutdownTimeout.
func Serve(ctx context.Context, ln net.Listener, cfg Config, handler http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithFields(logging.Fields{
			"addr":    ln.Addr().String(),
			"service": cfg.ServiceName,
		}).Info("Starting HTTP server")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.WithField("service", cfg.ServiceName).Info("Shutting down server...")
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.WithField("service", cfg.ServiceName).Info("Server stopped")
	return nil
}
