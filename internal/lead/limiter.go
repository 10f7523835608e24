package lead

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultMaxClients bounds how many client buckets a Limiter tracks.
const DefaultMaxClients = 4096

// Limiter is a token bucket per client key. At most maxClients buckets are
// kept; the least recently seen client is dropped first.
type Limiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// NewLimiter allows perMinute submissions per client with the given burst.
// perMinute <= 0 disables limiting; maxClients <= 0 uses DefaultMaxClients.
func NewLimiter(perMinute, burst, maxClients int) *Limiter {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	// Only fails for a non-positive size.
	clients, _ := lru.New[string, *rate.Limiter](maxClients)

	l := &Limiter{
		limit:   rate.Inf,
		burst:   burst,
		now:     time.Now,
		clients: clients,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if l.burst <= 0 {
		l.burst = 1
	}
	return l
}

// Allow consumes a token for key.
func (l *Limiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.clients.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(key, lim)
	}
	return lim.AllowN(now, 1)
}

// Tracked returns the number of client buckets held.
func (l *Limiter) Tracked() int {
	return l.clients.Len()
}
