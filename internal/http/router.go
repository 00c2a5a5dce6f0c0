// Package httpapi wires the HTTP transport (Gin) to the generation service,
// the job registry and admission control. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging/redaction, panic
// recovery, metrics, idempotency, rate limiting, CORS, security headers and
// response compression.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - ZIP and 3MF downloads are sent uncompressed
package httpapi

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/gridfinity-server/docs"
	"github.com/tbourn/gridfinity-server/internal/admission"
	"github.com/tbourn/gridfinity-server/internal/config"
	"github.com/tbourn/gridfinity-server/internal/http/handlers"
	"github.com/tbourn/gridfinity-server/internal/http/middleware"
)

// Deps are the services behind the routes.
type Deps struct {
	Generator handlers.Generator
	Jobs      handlers.JobQueue
	// Admitter gates job submissions. Nil disables admission control.
	Admitter admission.Admitter
	Version  string
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. ClientID: resolve the client identity used by limits and job scoping
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per client, bypass on replay)
//  10. CORS and Security headers
//  11. Gzip on the API group, excluding ZIP and 3MF downloads
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2-3) Correlate requests, logs and limits
	r.Use(middleware.RequestID())
	r.Use(middleware.ClientID())

	// 4) Structured logging with redaction; probes are not access-logged
	base := strings.TrimSuffix(cfg.APIBasePath, "/")
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		SkipPaths:   []string{"/health", base + "/health", "/metrics"},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))

	// 7) Prometheus metrics and /metrics endpoint (not rate limited)
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	var lookup middleware.IdempotencyLookup
	if deps.Jobs != nil {
		lookup = func(clientID, key string) bool {
			_, ok := deps.Jobs.Replay(clientID, key)
			return ok
		}
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup))

	// 9) Token-bucket rate limiter per client
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClient())
	r.Use(rl.Handler())

	// 10) CORS posture and security headers
	for _, h := range corsHandlers(cfg.CORS.AllowedOrigins) {
		r.Use(h)
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(deps.Generator, deps.Jobs, deps.Admitter, handlers.Options{
		BasePath:    base,
		SyncTimeout: cfg.Generator.SyncTimeout,
		Version:     deps.Version,
	})

	// Liveness for probes that do not know the base path
	if base != "" {
		r.GET("/health", h.Health)
	}

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		docs.SwaggerInfo.Version = deps.Version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	if cfg.GzipEnabled {
		api.Use(compress(base))
	}
	{
		api.GET("/health", h.Health)

		// Synchronous downloads
		api.POST("/bin/stl", h.GenerateBinSTL)
		api.POST("/baseplate/stl", h.GenerateBaseplateSTL)
		api.POST("/plate/stl", h.GeneratePlateZip)
		api.POST("/plate/3mf", h.GeneratePlate3MF)

		// Jobs
		api.POST("/jobs/bin", h.SubmitBinJob)
		api.POST("/jobs/baseplate", h.SubmitBaseplateJob)
		api.POST("/jobs/plate", h.SubmitPlateJob)
		api.POST("/jobs/plate-3mf", h.SubmitPlate3MFJob)
		api.GET("/jobs/:id", h.GetJob)
		api.GET("/jobs/:id/result", h.GetJobResult)
	}
}

// corsHandlers returns the CORS middleware chain. With no allowlist every
// origin is allowed without credentials; otherwise allowed origins are echoed.
func corsHandlers(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Disposition", "Retry-After", handlers.HeaderIdempotencyReplayed,
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * even for requests without an Origin header
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// compress gzips API responses except the already-compressed ZIP and 3MF
// downloads. Job results are skipped because their type is unknown up front.
func compress(prefix string) gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{prefix + "/plate/stl", prefix + "/plate/3mf"}),
		gzip.WithExcludedPathsRegexs([]string{"^" + regexp.QuoteMeta(prefix) + "/jobs/[^/]+/result$"}),
	)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
