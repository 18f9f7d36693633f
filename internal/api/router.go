// Package api serves the operational HTTP surface of the serve process: liveness,
// readiness and version checks. Domain operations are called in-process through
// services.Core and have no HTTP routes.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is an optional dependency consulted by the readiness check.
// *cache.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter builds the health router. cache may be nil when Redis is disabled.
func NewRouter(db *sql.DB, cache HealthChecker, version string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, cache))
	router.GET("/version", versionHandler(version))
	return router
}

// healthCheckHandler reports whether the process can reach its database.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler fails when the database is unreachable. A Redis outage is
// reported but leaves the service ready, since transforms run uncached.
func readinessHandler(db *sql.DB, cache HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		switch {
		case cache == nil:
			checks["cache"] = "disabled"
		case cache.Health(ctx) != nil:
			checks["cache"] = "degraded"
		default:
			checks["cache"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version})
	}
}

// LoggerMiddleware logs each request as a structured slog record.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.LogAttrs(c.Request.Context(), slog.LevelDebug, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
