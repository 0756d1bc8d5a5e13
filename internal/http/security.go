package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"ledger/internal/log"
)

// securityMetrics tracks security-related events.
type securityMetrics struct {
	rateLimitHits      atomic.Int64
	suspiciousRequests atomic.Int64
}

// SecurityStats is a snapshot of securityMetrics.
type SecurityStats struct {
	RateLimitHits      int64 `json:"rateLimitHits"`
	SuspiciousRequests int64 `json:"suspiciousRequests"`
}

// trustedProxies defines networks that are trusted to set forwarding headers.
var trustedProxies = []*net.IPNet{
	parseCIDR("127.0.0.0/8"),
	parseCIDR("10.0.0.0/8"),
	parseCIDR("172.16.0.0/12"),
	parseCIDR("192.168.0.0/16"),
	parseCIDR("::1/128"),
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

func isTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP returns the caller's address. Forwarding headers are honoured
// only when the direct peer is a trusted proxy.
func clientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	".git", ".ssh", "<script", "union select", "etc/passwd",
}

// isSuspicious flags scanner-style paths and queries.
func isSuspicious(r *http.Request) bool {
	if len(r.URL.String()) > 2048 {
		return true
	}
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			return true
		}
	}
	return false
}

// withSecurityHeaders sets the response hardening headers and records
// suspicious requests. Suspicious requests are logged, not blocked.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")

		if isSuspicious(r) {
			s.security.suspiciousRequests.Add(1)
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, clientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityStats returns the security counters.
func (s *Server) SecurityStats() SecurityStats {
	return SecurityStats{
		RateLimitHits:      s.security.rateLimitHits.Load(),
		SuspiciousRequests: s.security.suspiciousRequests.Load(),
	}
}
