// Package server integrates all components into a complete HTTP server
// for the factsentry vault gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/factsentry/factsentry/internal/audit"
	"github.com/factsentry/factsentry/internal/config"
	"github.com/factsentry/factsentry/internal/engine"
	"github.com/factsentry/factsentry/internal/grant"
	"github.com/factsentry/factsentry/internal/health"
	"github.com/factsentry/factsentry/internal/vault"
)

// errNoChange aborts a Mutate so the vault file stays untouched.
var errNoChange = errors.New("no change")

// Server is the main factsentry HTTP server assembling all components.
type Server struct {
	cfg           *config.Config
	mu            sync.Mutex
	httpServer    *http.Server
	listener      net.Listener // if non-nil, Start uses this instead of creating one
	store         *vault.Store
	engine        *engine.Engine
	signer        *grant.Signer
	limiter       *AgentRateLimiter
	healthHandler *health.Handler
	auditLogger   *audit.Logger
	metrics       *audit.Metrics
	logger        *slog.Logger
	version       string
}

// New creates a new Server from configuration.
func New(cfg *config.Config, version string) (*Server, error) {
	logger := buildLogger(cfg)

	store := vault.NewStore(cfg.Vault.Path, logger)
	eng := engine.New(logger)

	auditLogger := audit.NewLogger(logger, audit.SamplingConfig{
		Rate:     cfg.Logging.Audit.SamplingRate,
		DenyRate: cfg.Logging.Audit.DenySamplingRate,
	})

	metrics := audit.NewMetrics()
	metrics.SetBuildInfo(version, runtime.Version())

	srv := &Server{
		cfg:           cfg,
		store:         store,
		engine:        eng,
		healthHandler: health.NewHandler(store, version),
		auditLogger:   auditLogger,
		metrics:       metrics,
		logger:        logger,
		version:       version,
	}

	if cfg.Security.RateLimit.Enabled {
		srv.limiter = NewAgentRateLimiter(
			cfg.Security.RateLimit.PerAgent,
			cfg.Security.RateLimit.Burst,
			cfg.Security.RateLimit.CleanupInterval.Duration,
		)
	}

	if cfg.Security.Grant.Enabled {
		signer, err := grant.NewSigner(cfg.Security.Grant.JWKFile, cfg.Security.Grant.TTL.Duration)
		if err != nil {
			return nil, fmt.Errorf("configuring release grants: %w", err)
		}
		srv.signer = signer
		logger.Info("release grants enabled", "jwk_file", cfg.Security.Grant.JWKFile, "ttl", cfg.Security.Grant.TTL.Duration)
	}

	return srv, nil
}

// Logger returns the server's structured logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Start begins listening and serving. It blocks until the context is canceled
// or an unrecoverable error occurs.
func (s *Server) Start(ctx context.Context) error {
	handler := s.handler()

	listenAddr := fmt.Sprintf("%s:%d", s.cfg.Listen.Host, s.cfg.Listen.Port)

	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", listenAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", listenAddr, err)
		}
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	go s.sweepPending(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", listenAddr)
		if s.cfg.Listen.TLS.CertFile != "" {
			errCh <- srv.ServeTLS(ln, s.cfg.Listen.TLS.CertFile, s.cfg.Listen.TLS.KeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Shutdown.Timeout.Duration)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// Shutdown performs graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()

	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}
	return nil
}

// OnConfigReload applies reloadable configuration changes: rate limits and
// decision log sampling. Listener and vault path changes require a restart.
func (s *Server) OnConfigReload(newCfg *config.Config) error {
	if s.limiter != nil && newCfg.Security.RateLimit.Enabled {
		s.limiter.UpdateLimits(newCfg.Security.RateLimit.PerAgent, newCfg.Security.RateLimit.Burst)
	}

	s.mu.Lock()
	s.auditLogger = audit.NewLogger(s.logger, audit.SamplingConfig{
		Rate:     newCfg.Logging.Audit.SamplingRate,
		DenyRate: newCfg.Logging.Audit.DenySamplingRate,
	})
	s.cfg = newCfg
	s.mu.Unlock()

	return nil
}

// auditLog returns the current decision logger. Guarded because reloads swap it.
func (s *Server) auditLog() *audit.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auditLogger
}

// sweepPending periodically expires aged-out approval challenges so they do
// not sit in the vault forever when nobody resolves or lists them.
func (s *Server) sweepPending(ctx context.Context) {
	interval := s.cfg.Pending.SweepInterval.Duration
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := 0
			err := s.store.Mutate(func(snap *vault.Snapshot) error {
				removed = s.engine.PrunePending(snap, time.Now())
				if removed == 0 {
					return errNoChange
				}
				s.metrics.SetPendingApprovals(len(snap.Pending))
				return nil
			})
			if err != nil && err != errNoChange {
				s.logger.Error("pending sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("expired approval challenges swept", "removed", removed)
			}
		}
	}
}

// allowAgent consults the rate limiter; a disabled limiter allows everything.
func (s *Server) allowAgent(agentID string) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow(agentID)
}

// buildLogger creates an slog.Logger based on configuration.
func buildLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var output *os.File
	switch cfg.Logging.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}
