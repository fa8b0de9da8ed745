package middleware

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/utils/helpers"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter ограничивает число запросов с одного IP: max за window.
// Ведро наполняется равномерно, поэтому после всплеска ждать приходится
// не всё окно, а до появления следующего токена.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	window  time.Duration
	subject string

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter возвращает nil при max <= 0, nil-лимитер ничего не ограничивает.
func NewRateLimiter(max int, window time.Duration, subject string) *RateLimiter {
	if max <= 0 || window <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(max) / window.Seconds()),
		burst:   max,
		window:  window,
		subject: subject,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		ip := clientIP(r)

		res := l.limiterFor(ip, now).ReserveN(now, 1)
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			secs := int(math.Ceil(delay.Seconds()))
			logger.WithCtx(r.Context()).Warn("Превышен лимит запросов",
				zap.String("subject", l.subject), zap.String("ip", ip), zap.Int("retry_after", secs))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			helpers.Error(w, http.StatusTooManyRequests,
				fmt.Sprintf("Too many %s attempts, please try again later in %d seconds", l.subject, secs))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	l.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	l.cleanupLocked(now)
	return limiter
}

// простаивающие дольше окна клиенты уже с полным ведром, их можно забыть
func (l *RateLimiter) cleanupLocked(now time.Time) {
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.window {
			delete(l.clients, key)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
