package server

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Start serves HTTP until ctx is canceled, then shuts down gracefully. The
// Prometheus listener and the dataset watcher share the same lifecycle.
func (s *Server) Start(ctx context.Context) error {
	httpServer := s.newHTTPServer()

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return s.serve(ctx, httpServer, ln)
}

func (s *Server) serve(ctx context.Context, httpServer *http.Server, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("Starting HTTP server",
			"address", ln.Addr().String(),
			"tls_enabled", httpServer.TLSConfig != nil)
		s.logEndpoints()

		var err error
		if httpServer.TLSConfig != nil {
			tlsCfg := s.AppConfig.Server.TLS
			err = httpServer.ServeTLS(ln, tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = httpServer.Serve(ln)
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if promServer := s.om.PrometheusServer(); promServer != nil {
		g.Go(func() error {
			s.Logger.Info("Starting Prometheus metrics server", "address", promServer.Addr)
			if err := promServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("prometheus server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return shutdownHTTP(promServer)
		})
	}

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			s.Logger.LogError(err, "Failed to start dataset watcher")
		} else {
			g.Go(func() error {
				<-ctx.Done()
				return s.watcher.Stop()
			})
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		s.Logger.Info("Shutting down HTTP server...")
		s.cleanupRateLimiter()
		if err := shutdownHTTP(httpServer); err != nil {
			s.Logger.LogError(err, "Failed to shutdown server gracefully")
			return err
		}
		s.Logger.Info("Server shutdown completed successfully")
		return nil
	})

	return g.Wait()
}

// newHTTPServer creates and configures the HTTP server
func (s *Server) newHTTPServer() *http.Server {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.Host, s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}

	if tlsCfg := s.AppConfig.Server.TLS; tlsCfg.Enabled() {
		srv.TLSConfig = &tls.Config{MinVersion: tlsCfg.TLSVersion()}
	}
	return srv
}

// shutdownHTTP drains srv, forcing a close when the deadline passes
func shutdownHTTP(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}
}

// logEndpoints logs the served routes and security settings
func (s *Server) logEndpoints() {
	scheme := "http"
	if s.AppConfig.Server.TLS.Enabled() {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.Host, s.Port))

	s.Logger.Info("HTTP endpoints",
		"chat", "POST "+base+"/api/chat",
		"think", "POST "+base+"/api/think",
		"speak", "POST "+base+"/api/speak",
		"rank", "POST "+base+"/api/rank",
		"candidates", "GET "+base+"/api/candidates",
		"health", "GET "+base+"/health",
		"stats", "GET "+base+"/stats")

	s.Logger.Info("Server security",
		"auth_enabled", len(s.APIKeys) > 0,
		"api_keys", len(s.APIKeys),
		"rate_limit_enabled", s.RateLimiter != nil,
		"max_request_size", s.MaxRequestSize)
}
