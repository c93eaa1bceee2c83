package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 10 * time.Minute
)

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// HTTPStatus is the status returned to a client rejected for this reason.
func (r LimitReason) HTTPStatus() int {
	if r == LimitReasonRate {
		return http.StatusTooManyRequests
	}
	return http.StatusServiceUnavailable
}

// LimitsConfig configures connection admission. A zero value for any field
// disables that check.
type LimitsConfig struct {
	MaxConnections       int
	MaxConnectionsPerIP  int
	ConnectionsPerSecond float64
	Burst                int
}

// ConnectionLimits admits event-stream connections against a global cap, a
// per-IP cap and a per-IP token bucket.
type ConnectionLimits struct {
	cfg   LimitsConfig
	clock clockwork.Clock

	mu        sync.Mutex
	total     int
	perIP     map[string]int
	buckets   map[string]*bucket
	cleanupAt time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(cfg LimitsConfig, clock clockwork.Clock) *ConnectionLimits {
	return &ConnectionLimits{
		cfg:       cfg,
		clock:     clock,
		perIP:     make(map[string]int),
		buckets:   make(map[string]*bucket),
		cleanupAt: clock.Now().Add(limiterCleanupInterval),
	}
}

// Acquire reserves a connection slot for ip. Every successful Acquire must be
// paired with a Release.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.sweep(now)
		l.cleanupAt = now.Add(limiterCleanupInterval)
	}

	if l.cfg.ConnectionsPerSecond > 0 && !l.allow(ip, now) {
		return false, LimitReasonRate
	}
	if l.cfg.MaxConnections > 0 && l.total >= l.cfg.MaxConnections {
		return false, LimitReasonGlobal
	}
	if l.cfg.MaxConnectionsPerIP > 0 && l.perIP[ip] >= l.cfg.MaxConnectionsPerIP {
		return false, LimitReasonPerIP
	}

	l.total++
	l.perIP[ip]++
	return true, ""
}

// Release frees a slot reserved by Acquire.
func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total > 0 {
		l.total--
	}
	if n := l.perIP[ip]; n > 1 {
		l.perIP[ip] = n - 1
	} else {
		delete(l.perIP, ip)
	}
}

// Current returns the number of held slots.
func (l *ConnectionLimits) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// allow consumes a token from ip's bucket. Must be called with mu held.
func (l *ConnectionLimits) allow(ip string, now time.Time) bool {
	b, ok := l.buckets[ip]
	if !ok {
		burst := l.cfg.Burst
		if burst < 1 {
			burst = 1
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.ConnectionsPerSecond), burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle for longer than limiterIdleTTL. Must be called
// with mu held.
func (l *ConnectionLimits) sweep(now time.Time) {
	cutoff := now.Add(-limiterIdleTTL)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}
