package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"imgvault/internal/auth"
	"imgvault/internal/backend"
	"imgvault/internal/ingest"
	"imgvault/internal/models"
	"imgvault/internal/ratelimit"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 120 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
	healthTimeout     = 10 * time.Second
	fetchTimeout      = 30 * time.Second

	adminMaxFailures = 5
	adminWindow      = 15 * time.Minute
	adminBlockedFor  = 15 * time.Minute
)

// Submitter validates, seals and queues uploads.
type Submitter interface {
	Submit(ctx context.Context, sub ingest.Submission) (string, error)
	MaxFileSize() int64
}

// JobLookup answers job status queries.
type JobLookup interface {
	Get(jobID string) (models.FileReference, bool)
}

// Codec turns references into tokens and opens stored packets.
type Codec interface {
	EncodeReference(ref models.FileReference) (string, error)
	DecodeReference(token string) (models.FileReference, error)
	DecryptBytes(packet []byte) ([]byte, error)
}

// Options wires the server to its collaborators.
type Options struct {
	Addr      string
	Pipeline  Submitter
	Jobs      JobLookup
	Codec     Codec
	Backend   backend.Backend
	Limiter   *ratelimit.Limiter
	Admin     *auth.AdminVerifier
	Version   string
	Logger    *slog.Logger

	// TrustForwardedFor keys rate limiting on X-Forwarded-For.
	TrustForwardedFor bool

	// FetchClient downloads images for URL uploads.
	FetchClient *http.Client
}

// Server wraps HTTP handlers for the imgvault API.
type Server struct {
	addr              string
	pipeline          Submitter
	jobs              JobLookup
	codec             Codec
	backend           backend.Backend
	limiter           *ratelimit.Limiter
	admin             *auth.AdminVerifier
	adminAttempts     *attemptLimiter
	version           string
	trustForwardedFor bool
	fetchClient       *http.Client
	logger            *slog.Logger
	now               func() time.Time
}

// New creates a new server instance.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Pipeline == nil:
		return nil, fmt.Errorf("pipeline is required")
	case opts.Jobs == nil:
		return nil, fmt.Errorf("job store is required")
	case opts.Codec == nil:
		return nil, fmt.Errorf("codec is required")
	case opts.Backend == nil:
		return nil, fmt.Errorf("backend is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fetchClient := opts.FetchClient
	if fetchClient == nil {
		fetchClient = &http.Client{Timeout: fetchTimeout}
	}

	return &Server{
		addr:              opts.Addr,
		pipeline:          opts.Pipeline,
		jobs:              opts.Jobs,
		codec:             opts.Codec,
		backend:           opts.Backend,
		limiter:           opts.Limiter,
		admin:             opts.Admin,
		adminAttempts:     newAttemptLimiter(adminMaxFailures, adminWindow, adminBlockedFor),
		version:           opts.Version,
		trustForwardedFor: opts.TrustForwardedFor,
		fetchClient:       fetchClient,
		logger:            logger,
		now:               time.Now,
	}, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "version", s.version)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) notify(text string) {
	backend.Notify(s.backend, s.log(), text)
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
