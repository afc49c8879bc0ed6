package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/shelfsy/shelfsy-server/internal/http/response"
)

const adminPrefix = "/api/v1/admin/"

// adminRateLimit limits admin requests per client IP. The events stream is
// long-lived and exempt.
func (s *Server) adminRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, adminPrefix) || r.URL.Path == eventsPath {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		if !s.adminLimits.Allow(key) {
			s.logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
			response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. middleware.RealIP has
// already applied X-Forwarded-For and X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
