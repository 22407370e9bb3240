package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"argus/util"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs one line per request. Paths come from the router,
// not raw user input, but query values are sanitized before logging.
func (a *API) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		a.logger.Infow("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", util.SanitizeString(r.URL.RawQuery),
			"status", rec.status,
			"remote", clientIP(r),
			"duration", time.Since(start))
	})
}

// newRateLimitMiddleware creates a per-IP token-bucket limiter. Entries for
// idle IPs are reaped periodically so the map cannot grow without bound.
func newRateLimitMiddleware(requestsPerSecond, burst int, logger *zap.SugaredLogger) mux.MiddlewareFunc {
	type entry struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*entry)
	)

	const idleExpiry = 10 * time.Minute
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			for ip, e := range limiters {
				if time.Since(e.lastSeen) > idleExpiry {
					delete(limiters, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			mu.Lock()
			e, ok := limiters[ip]
			if !ok {
				e = &entry{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
				limiters[ip] = e
			}
			e.lastSeen = time.Now()
			mu.Unlock()

			if !e.limiter.Allow() {
				logger.Warnw("Rate limit exceeded", "remote", ip)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the peer address without the port. Proxy headers are
// deliberately not consulted; Argus is expected to sit behind a trusted
// reverse proxy that enforces its own limits, or none at all.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
