// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kaira-dev/kaira/internal/api/auth"
	"github.com/kaira-dev/kaira/internal/convert"
	"github.com/kaira-dev/kaira/internal/files"
	"github.com/kaira-dev/kaira/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	AccessSecret     []byte
	RefreshSecret    []byte
	AllowedOrigins   []string // CORS origins, "*" allows all
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RateLimitPerIP   int
	RateLimitPerUser int
	QueryTimeout     time.Duration // Timeout for storage-backed API calls
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":3002"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 10 // 10 auth requests per minute per IP
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 100 // 100 requests per minute per user
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
}

// Server is the HTTP API server.
type Server struct {
	config    *Config
	storage   storage.Storage
	tokens    *auth.TokenService
	files     *files.Store
	converter convert.Converter
	launcher  convert.Launcher
	server    *http.Server
}

// New creates a new API server. The converter and launcher are the external
// tools projects are handed to; either may be nil when that tooling is not
// installed, and the matching endpoints will refuse requests.
func New(cfg *Config, store storage.Storage, fileStore *files.Store, converter convert.Converter, launcher convert.Launcher) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if fileStore == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("access and refresh secrets are required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:    cfg,
		storage:   store,
		tokens:    auth.NewTokenService(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		files:     fileStore,
		converter: converter,
		launcher:  launcher,
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:        cfg.Address,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout covers the slowest legitimate request, streaming a
		// freshly converted model file back to the client.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}
