package wsiview

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wsiview/wsiview/cache"
)

// ContextKey is the key type for request-scoped server state.
type ContextKey string

// WithConfig sets the server configuration.
func WithConfig(h http.Handler, config *Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKey("config"), config)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithFileCache sets the plane cache handed to sources.
func WithFileCache(h http.Handler, fc *cache.FileCache) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKey("planes"), fc)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

var (
	httpResponseTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_time_seconds",
		Help: "Duration of HTTP requests.",
	}, []string{"path"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Count of HTTP requests.",
	}, []string{"path", "method", "code"})
)

// statusRecorder captures the response code for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// PrometheusMiddleware observes response times and counts requests per
// route template.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		timer := prometheus.NewTimer(httpResponseTime.WithLabelValues(path))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpRequests.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
