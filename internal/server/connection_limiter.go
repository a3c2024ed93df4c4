package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LimitReason describes why a stream connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits guards stream endpoints with three layered checks:
// a per-IP token bucket for connection churn, a global concurrent cap,
// and a per-IP concurrent cap.
type ConnectionLimits struct {
	globalMax     int64
	globalCurrent atomic.Int64

	mu       sync.Mutex
	perIP    map[string]int
	perIPMax int

	buckets   map[string]*ipBucket
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const bucketCleanupInterval = 5 * time.Minute

func NewConnectionLimits(globalMax int64, perIPMax int, connectionsPerSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		globalMax: globalMax,
		perIP:     make(map[string]int),
		perIPMax:  perIPMax,
		buckets:   make(map[string]*ipBucket),
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(bucketCleanupInterval),
	}
}

// Acquire claims a connection slot for ip. On success the caller must
// eventually call Release with the same ip.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.allowRate(ip) {
		return false, LimitReasonRate
	}
	if !l.acquireGlobal() {
		return false, LimitReasonGlobal
	}
	if !l.acquirePerIP(ip) {
		l.globalCurrent.Add(-1)
		return false, LimitReasonPerIP
	}
	return true, ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if count := l.perIP[ip]; count > 1 {
		l.perIP[ip] = count - 1
	} else if count == 1 {
		delete(l.perIP, ip)
	}
	l.mu.Unlock()
	l.globalCurrent.Add(-1)
}

// GlobalCurrent reports how many slots are held right now.
func (l *ConnectionLimits) GlobalCurrent() int64 {
	return l.globalCurrent.Load()
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.globalCurrent.Load()
		if current >= l.globalMax {
			return false
		}
		if l.globalCurrent.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *ConnectionLimits) acquirePerIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip] >= l.perIPMax {
		return false
	}
	l.perIP[ip]++
	return true
}

func (l *ConnectionLimits) allowRate(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.cleanupAt) {
		l.dropStaleBuckets(now)
		l.cleanupAt = now.Add(bucketCleanupInterval)
	}

	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = &ipBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

// dropStaleBuckets forgets token buckets idle for two cleanup intervals.
// Must be called with mu held.
func (l *ConnectionLimits) dropStaleBuckets(now time.Time) {
	cutoff := now.Add(-2 * bucketCleanupInterval)
	for ip, bucket := range l.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}
