package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dicom-viewer-api/internal/domain"
)

// maxTrackedClients bounds the limiter map; idle entries are pruned once the
// map grows past it.
const maxTrackedClients = 10000

const clientIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit throttles requests per client IP with a token bucket. Disabled
// configuration yields a pass-through handler.
func RateLimit(cfg domain.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		if len(clients) > maxTrackedClients {
			pruneIdle(clients)
		}
		mu.Unlock()

		if !cl.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			return
		}

		c.Next()
	}
}

func pruneIdle(clients map[string]*clientLimiter) {
	cutoff := time.Now().Add(-clientIdleTTL)
	for ip, cl := range clients {
		if cl.lastSeen.Before(cutoff) {
			delete(clients, ip)
		}
	}
}
