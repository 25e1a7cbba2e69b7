package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"coinrush/internal/token"
)

type ctxKey int

const claimsKey ctxKey = iota

// ClaimsFrom returns the authenticated session claims, or nil outside
// the auth middleware.
func ClaimsFrom(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsKey).(*token.Claims)
	return claims
}

// requireAuth validates the Bearer token and stores its claims on the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.respondError(w, r, unauthorized("token required"))
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header {
			s.respondError(w, r, unauthorized("bearer token required"))
			return
		}
		claims, err := s.tokens.Parse(raw)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed[origin] || allowed["*"]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ipLimiter hands out one token-bucket limiter per client IP and drops
// buckets that have been idle for a while.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	rate    rate.Limit
	burst   int
	stop    chan struct{}
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	l := &ipLimiter{
		buckets: map[string]*ipBucket{},
		rate:    rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		stop:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

func (l *ipLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep(3 * time.Minute)
		}
	}
}

// sweep drops buckets idle longer than the given age.
func (l *ipLimiter) sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.buckets {
		if time.Since(b.lastSeen) > idle {
			delete(l.buckets, ip)
		}
	}
}

// Close stops the janitor goroutine.
func (l *ipLimiter) Close() {
	close(l.stop)
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	limiter := newIPLimiter(s.cfg.RateLimitPerMin)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		if !limiter.allow(ip) {
			s.respondError(w, r, apiError(ErrCodeRateLimit, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
