package engine

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedUsers caps the number of tracked per-user buckets to prevent
	// memory exhaustion from attackers rotating user ids.
	maxTrackedUsers = 4096

	// userIdleTTL is how long an untouched user entry survives pruning.
	userIdleTTL = 2 * time.Hour
)

// RateLimitConfig bounds how many auto-responses a user may receive.
// Both tiers are token buckets with continuous, time-based refill — no batch
// resets at window boundaries.
type RateLimitConfig struct {
	PerMinute int `json:"per_minute,omitempty"` // short tier cap (default 1)
	PerHour   int `json:"per_hour,omitempty"`   // long tier cap (default 2)
}

// DefaultRateLimitConfig returns the production caps for regular users.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{PerMinute: 1, PerHour: 2}
}

type userBuckets struct {
	mu       sync.Mutex
	minute   *rate.Limiter
	hour     *rate.Limiter
	lastSeen time.Time
}

// RateLimiter gates auto-responses per user across two independent token
// buckets. Premium users bypass both tiers. Decisions for different users
// never interfere; check-and-consume for one user is atomic under its mutex.
type RateLimiter struct {
	cfg RateLimitConfig

	mu    sync.Mutex
	users map[string]*userBuckets
}

// NewRateLimiter creates a limiter with the given tier caps. Zero or negative
// caps fall back to the defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = def.PerHour
	}
	return &RateLimiter{cfg: cfg, users: make(map[string]*userBuckets)}
}

// Allow consumes one token from both tiers, or neither. It returns whether
// the user may receive an auto-response and, on denial, which tier ran dry.
func (r *RateLimiter) Allow(userID string, isPremium bool) (bool, string) {
	return r.allowAt(time.Now(), userID, isPremium)
}

func (r *RateLimiter) allowAt(now time.Time, userID string, isPremium bool) (bool, string) {
	if isPremium {
		return true, ""
	}

	u := r.bucketsFor(now, userID)

	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastSeen = now

	// Reserve on both tiers; commit only if both have a token available now,
	// otherwise cancel so no token is burned by a denied request.
	rm := u.minute.ReserveN(now, 1)
	if !rm.OK() || rm.DelayFrom(now) > 0 {
		rm.CancelAt(now)
		return false, "per-minute"
	}
	rh := u.hour.ReserveN(now, 1)
	if !rh.OK() || rh.DelayFrom(now) > 0 {
		rh.CancelAt(now)
		rm.CancelAt(now)
		return false, "per-hour"
	}
	return true, ""
}

func (r *RateLimiter) bucketsFor(now time.Time, userID string) *userBuckets {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		return u
	}

	// Prune idle entries when approaching the cap, then hard-evict if the map
	// is still full.
	if len(r.users) >= maxTrackedUsers {
		for id, u := range r.users {
			if now.Sub(u.lastSeen) >= userIdleTTL {
				delete(r.users, id)
			}
		}
		for len(r.users) >= maxTrackedUsers {
			for id := range r.users {
				delete(r.users, id)
				break
			}
		}
	}

	u := &userBuckets{
		minute:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.cfg.PerMinute)), r.cfg.PerMinute),
		hour:     rate.NewLimiter(rate.Every(time.Hour/time.Duration(r.cfg.PerHour)), r.cfg.PerHour),
		lastSeen: now,
	}
	r.users[userID] = u
	return u
}

// Tracked returns how many users currently have live buckets.
func (r *RateLimiter) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
