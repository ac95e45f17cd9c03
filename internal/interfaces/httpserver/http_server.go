// Package httpserver assembles the gin engine: middleware stack, public
// health endpoints and the authenticated v1 API.
package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chat-server/services/chat-api/internal/config"
	"chat-server/services/chat-api/internal/infrastructure/auth"
	"chat-server/services/chat-api/internal/infrastructure/ratelimit"
	middleware "chat-server/services/chat-api/internal/interfaces/httpserver/middlewares"
	v1 "chat-server/services/chat-api/internal/interfaces/httpserver/routes/v1"
)

type HTTPServer struct {
	engine    *gin.Engine
	validator *auth.JWTValidator
	limiter   ratelimit.Limiter
	logger    zerolog.Logger
	v1Route   *v1.V1Route
	config    *config.Config
}

func NewHttpServer(
	v1Route *v1.V1Route,
	validator *auth.JWTValidator,
	limiter ratelimit.Limiter,
	logger zerolog.Logger,
	cfg *config.Config,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := &HTTPServer{
		engine:    gin.New(),
		validator: validator,
		limiter:   limiter,
		logger:    logger,
		v1Route:   v1Route,
		config:    cfg,
	}

	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.LoggingMiddleware(logger))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness gates on the JWKS cache: without keys every request would 401.
	server.engine.GET("/readyz", func(c *gin.Context) {
		if server.validator != nil && !server.validator.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return server
}

func (httpServer *HTTPServer) Run() error {
	root := httpServer.engine.Group("/")
	httpServer.v1Route.RegisterPublicRouter(root)

	protected := httpServer.engine.Group("/")
	protected.Use(
		middleware.AuthMiddleware(httpServer.validator, httpServer.logger, httpServer.config.Issuer),
		middleware.RateLimitMiddleware(httpServer.limiter, httpServer.logger),
	)
	httpServer.v1Route.RegisterRouter(protected)

	// No write timeout: completion streams run longer than any fixed deadline.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpServer.config.HTTPPort),
		Handler:           httpServer.engine,
		ReadHeaderTimeout: httpServer.config.HTTPTimeout,
	}
	return srv.ListenAndServe()
}
