package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashureev/logoforge/internal/identity"
)

const (
	visitorIdle     = 10 * time.Minute
	cleanupInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter throttles requests per user. Idle users are forgotten
// lazily, so no background goroutine is needed.
type UserRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	every       rate.Limit
	burst       int
	lastCleanup time.Time
	now         func() time.Time
}

// NewUserRateLimiter allows perMinute requests per user with the given burst.
func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &UserRateLimiter{
		visitors: make(map[string]*visitor),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *UserRateLimiter) limiterFor(userID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) > cleanupInterval {
		for id, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorIdle {
				delete(rl.visitors, id)
			}
		}
		rl.lastCleanup = now
	}

	v, ok := rl.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.visitors[userID] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Allow reports whether userID may make another request now.
func (rl *UserRateLimiter) Allow(userID string) bool {
	return rl.limiterFor(userID).AllowN(rl.now(), 1)
}

// Middleware rejects requests over the caller's budget with 429.
func (rl *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := identity.UserIDFromContext(r.Context())
		if userID == "" {
			userID = identity.IPFromRequest(r)
		}
		lim := rl.limiterFor(userID)
		now := rl.now()
		if !lim.AllowN(now, 1) {
			res := lim.ReserveN(now, 1)
			retry := res.DelayFrom(now)
			res.CancelAt(now)
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
