package command

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/tunebox-bot/tunebox/internal/app/session"
)

// ErrRateLimited is returned when a user sends commands faster than the
// configured rate allows.
var ErrRateLimited = errors.Wrap(session.ErrValidation, "slow down, too many commands")

// UserLimiter applies a per-user token bucket across all guilds.
type UserLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUserLimiter creates a limiter allowing perMinute commands sustained
// with the given burst. perMinute <= 0 disables limiting.
func NewUserLimiter(perMinute, burst int) *UserLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &UserLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}
}

// Allow reports whether the user may run one more command now.
func (l *UserLimiter) Allow(userID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
