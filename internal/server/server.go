/*
 * Copyright 2025 The Promptwire Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptwire/promptd/internal/config"
	"github.com/promptwire/promptd/internal/logging"
	"github.com/promptwire/promptd/internal/metrics"
	"github.com/promptwire/promptd/internal/middleware"
	"github.com/promptwire/promptd/internal/prompts"
	"github.com/promptwire/promptd/internal/registry"
	"github.com/promptwire/promptd/internal/storage"
)

// Server is the promptd HTTP server. It owns the persistent store,
// the in-memory registry derived from it, and the coordinator that
// keeps the two in step.
type Server struct {
	config        *config.Config
	httpServer    *http.Server
	router        *gin.Engine
	store         storage.PromptStore
	coordinator   *prompts.Coordinator
	logger        *logging.Logger
	metrics       metrics.Recorder
	simpleMetrics *metrics.SimpleMetrics
}

// New creates a new promptd server. The registry is populated from the
// store before the server is returned; a store that cannot be read at
// startup is a construction error, not a degraded state.
func New(cfg *config.Config) (*Server, error) {
	// Create logger
	logger := logging.NewLogger(cfg.Logging).WithComponent("server")

	// Create metrics if enabled
	var recorder metrics.Recorder
	var simpleMetrics *metrics.SimpleMetrics
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if cfg.Metrics.Backend == "prometheus" {
			recorder = metrics.NewMetrics()
		} else {
			simpleMetrics = metrics.NewSimpleMetrics()
			recorder = simpleMetrics
		}
	}

	// Create storage
	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt storage: %w", err)
	}

	// Create registry and coordinator, then load the registry from the store
	reg := registry.New()
	coordinator := prompts.NewCoordinator(reg, store, logging.NewLogger(cfg.Logging))

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := coordinator.Load(loadCtx); err != nil {
		return nil, fmt.Errorf("failed to load prompt registry: %w", err)
	}
	if recorder != nil {
		recorder.SetRegistrySize(float64(reg.Len()))
	}

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	router := gin.New()

	// Create server
	server := &Server{
		config:        cfg,
		router:        router,
		store:         store,
		coordinator:   coordinator,
		logger:        logger,
		metrics:       recorder,
		simpleMetrics: simpleMetrics,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	// Create HTTP server
	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Configure TLS if enabled
	if cfg.TLS.Enabled {
		tlsConfig, err := server.createTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		server.httpServer.TLSConfig = tlsConfig
	}

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.config.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the store
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// GetRouter returns the Gin router for testing purposes
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Coordinator returns the prompt coordinator for testing purposes
func (s *Server) Coordinator() *prompts.Coordinator {
	return s.coordinator
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(middleware.Logger(s.config.Logging))

	// CORS middleware
	s.router.Use(middleware.CORS())

	// Request ID middleware
	s.router.Use(middleware.RequestID())

	// Request size limit middleware
	s.router.Use(middleware.RequestSizeLimit(s.config.Server.MaxRequestSize))

	// Security headers middleware
	s.router.Use(middleware.SecurityHeaders())

	// HTTP metrics middleware
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	server := s

	// Health check endpoints
	server.router.GET("/health", func(c *gin.Context) { server.handleHealth(c) })
	server.router.GET("/ready", func(c *gin.Context) { server.handleReady(c) })

	adminAuth := middleware.AdminAuth(server.config.Auth)

	v1 := server.router.Group("/v1")
	{
		// Read endpoints (public)
		v1.GET("/prompts", server.withRequestLogging(func(c *gin.Context) { server.handleListPrompts(c) }))
		v1.GET("/prompts/:id", server.withRequestLogging(func(c *gin.Context) { server.handleGetPrompt(c) }))
		v1.GET("/prompts/:id/versions", server.withRequestLogging(func(c *gin.Context) { server.handleGetPromptVersions(c) }))

		// Mutation endpoints (admin protected)
		v1.POST("/prompts", adminAuth, server.withRequestLogging(func(c *gin.Context) { server.handleCreatePrompt(c) }))
		v1.PATCH("/prompts/:id", adminAuth, server.withRequestLogging(func(c *gin.Context) { server.handlePatchPrompt(c) }))
		v1.DELETE("/prompts/:id", adminAuth, server.withRequestLogging(func(c *gin.Context) { server.handleDeletePrompt(c) }))

		// Admin endpoints (admin protected)
		admin := v1.Group("/admin")
		admin.Use(adminAuth)
		{
			admin.POST("/reload", server.withRequestLogging(func(c *gin.Context) { server.handleReload(c) }))
		}
	}

	if server.metrics != nil {
		server.router.GET("/metrics", func(c *gin.Context) { server.handleMetrics(c) })
	}
}

// createTLSConfig creates TLS configuration
func (s *Server) createTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13, // Default to TLS 1.3
		CipherSuites: []uint16{
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
		PreferServerCipherSuites: true,
	}

	// Set minimum TLS version based on configuration
	switch s.config.TLS.MinVersion {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	case "1.3":
		tlsConfig.MinVersion = tls.VersionTLS13
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return tlsConfig, nil
}

// handleHealth handles health check requests (liveness probe)
func (s *Server) handleHealth(c *gin.Context) {
	health := s.checkHealth()

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// handleReady handles readiness check requests (readiness probe)
func (s *Server) handleReady(c *gin.Context) {
	readiness := s.checkReadiness(c.Request.Context())

	statusCode := http.StatusOK
	if !readiness.Ready {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, readiness)
}

// handleMetrics handles metrics requests. The simple backend serves a
// JSON snapshot; the prometheus backend serves the standard text
// exposition format.
func (s *Server) handleMetrics(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics not enabled"})
		return
	}

	if s.simpleMetrics != nil {
		data, err := s.simpleMetrics.ToJSON()
		if err != nil {
			s.logger.Error("Failed to serialize metrics", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize metrics"})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
		return
	}

	gin.WrapH(promhttp.Handler())(c)
}

// HealthStatus represents the health status of the server
type HealthStatus struct {
	Status     string            `json:"status"`
	Healthy    bool              `json:"healthy"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// ReadinessStatus represents the readiness status of the server
type ReadinessStatus struct {
	Status       string            `json:"status"`
	Ready        bool              `json:"ready"`
	Timestamp    time.Time         `json:"timestamp"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// checkHealth performs basic health checks (liveness)
func (s *Server) checkHealth() HealthStatus {
	healthy := true
	components := make(map[string]string)

	if s.router == nil {
		healthy = false
		components["router"] = "not_initialized"
	} else {
		components["router"] = "healthy"
	}

	if s.coordinator == nil {
		healthy = false
		components["coordinator"] = "not_initialized"
	} else {
		components["coordinator"] = "healthy"
	}

	if s.store == nil {
		healthy = false
		components["storage"] = "not_initialized"
	} else {
		components["storage"] = "healthy"
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:     status,
		Healthy:    healthy,
		Timestamp:  time.Now().UTC(),
		Version:    "1.0",
		Components: components,
	}
}

// checkReadiness performs comprehensive readiness checks
func (s *Server) checkReadiness(ctx context.Context) ReadinessStatus {
	ready := true
	dependencies := make(map[string]string)

	// Check store connectivity
	if s.store != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.store.HealthCheck(checkCtx); err != nil {
			ready = false
			dependencies["storage"] = "unavailable"
		} else {
			dependencies["storage"] = "ready"
		}
	} else {
		ready = false
		dependencies["storage"] = "not_initialized"
	}

	// Check registry
	if s.coordinator != nil {
		dependencies["registry"] = "ready"
	} else {
		ready = false
		dependencies["registry"] = "not_initialized"
	}

	status := "ready"
	if !ready {
		status = "not_ready"
	}

	return ReadinessStatus{
		Status:       status,
		Ready:        ready,
		Timestamp:    time.Now().UTC(),
		Version:      "1.0",
		Dependencies: dependencies,
	}
}
