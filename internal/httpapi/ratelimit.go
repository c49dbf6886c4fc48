package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 10 * time.Minute

type RateLimitConfig struct {
	IPPerMinute int
	IPBurst     int
	// TrustForwarded keys clients by X-Forwarded-For, for deployments behind
	// a reverse proxy.
	TrustForwarded bool
}

// RateLimiter throttles the unauthenticated write endpoints per client IP.
type RateLimiter struct {
	mu             sync.Mutex
	limit          rate.Limit
	burst          int
	trustForwarded bool
	visitors       map[string]*visitor
	lastSweep      time.Time
	now            func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	perMinute := cfg.IPPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := cfg.IPBurst
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limit:          rate.Limit(float64(perMinute) / 60.0),
		burst:          burst,
		trustForwarded: cfg.TrustForwarded,
		visitors:       make(map[string]*visitor),
		now:            time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isRateLimited(r) {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r, l.trustForwarded)
		if ip != "" && !l.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > visitorIdleTTL {
		for ip, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTTL {
				delete(l.visitors, ip)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func isRateLimited(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	return r.URL.Path == "/reservations" || r.URL.Path == "/admin/login"
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
