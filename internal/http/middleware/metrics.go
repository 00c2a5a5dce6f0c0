// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels stay
// bounded: method, the registered Gin route (raw path only when no route
// matched) and the status code. Artifact downloads are additionally counted by
// content type so STL, ZIP and 3MF egress can be told apart.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Generation requests can run for minutes when the cache is cold.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{.005, .025, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// JSON bodies sit in the low buckets, STL and 3MF payloads in the high ones.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10), // 256B..64MiB
		},
		[]string{"method", "path"},
	)

	artifactBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_artifact_bytes_total",
			Help: "Artifact bytes served, by content type.",
		},
		[]string{"content_type"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, artifactBytes)
}

// artifactTypes are the content types counted as artifact downloads.
var artifactTypes = map[string]struct{}{
	domain.ContentTypeSTL: {},
	domain.ContentTypeZIP: {},
	domain.ContentType3MF: {},
}

// Metrics returns the Prometheus middleware. Install it before routes and
// expose the default registry with promhttp.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		size := c.Writer.Size()
		if size < 0 {
			return
		}
		httpRespSize.WithLabelValues(method, path).Observe(float64(size))

		ct, _, _ := strings.Cut(c.Writer.Header().Get("Content-Type"), ";")
		if _, ok := artifactTypes[ct]; ok {
			artifactBytes.WithLabelValues(ct).Add(float64(size))
		}
	}
}
