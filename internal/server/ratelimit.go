package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// agentEntry holds a rate limiter and its last-used timestamp for cleanup.
type agentEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // UnixNano
}

// AgentRateLimiter enforces per-agent request rate limiting using individual
// token buckets. Agents are identified by the agent_id (or source_id) they
// present, so one noisy agent cannot starve the rest.
type AgentRateLimiter struct {
	limiters        sync.Map // agent id → *agentEntry
	mu              sync.Mutex
	perMinute       int
	burst           int
	cleanupInterval time.Duration
	cancel          context.CancelFunc
}

// NewAgentRateLimiter creates a per-agent rate limiter.
// perMinute is requests per minute per agent; burst is the token bucket size.
// cleanupInterval controls how often inactive entries are removed.
func NewAgentRateLimiter(perMinute, burst int, cleanupInterval time.Duration) *AgentRateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &AgentRateLimiter{
		perMinute:       perMinute,
		burst:           burst,
		cleanupInterval: cleanupInterval,
		cancel:          cancel,
	}
	go rl.cleanup(ctx)
	return rl
}

// Allow reports whether the given agent may proceed with one more request.
func (rl *AgentRateLimiter) Allow(agentID string) bool {
	return rl.getLimiter(agentID).Allow()
}

// UpdateLimits applies new rate parameters. Existing buckets are discarded,
// so every agent starts fresh under the new limits.
func (rl *AgentRateLimiter) UpdateLimits(perMinute, burst int) {
	rl.mu.Lock()
	rl.perMinute = perMinute
	rl.burst = burst
	rl.mu.Unlock()
	rl.limiters.Range(func(key, _ interface{}) bool {
		rl.limiters.Delete(key)
		return true
	})
}

// Stop stops the cleanup goroutine.
func (rl *AgentRateLimiter) Stop() {
	rl.cancel()
}

// getLimiter returns the rate limiter for the given agent, creating one if needed.
func (rl *AgentRateLimiter) getLimiter(agentID string) *rate.Limiter {
	now := time.Now().UnixNano()

	if v, ok := rl.limiters.Load(agentID); ok {
		entry := v.(*agentEntry)
		entry.lastSeen.Store(now)
		return entry.limiter
	}

	rl.mu.Lock()
	perSecond := float64(rl.perMinute) / 60.0
	burst := rl.burst
	rl.mu.Unlock()

	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	entry := &agentEntry{limiter: limiter}
	entry.lastSeen.Store(now)

	actual, loaded := rl.limiters.LoadOrStore(agentID, entry)
	if loaded {
		existing := actual.(*agentEntry)
		existing.lastSeen.Store(now)
		return existing.limiter
	}
	return limiter
}

// cleanup periodically removes inactive agent entries.
func (rl *AgentRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.cleanupInterval).UnixNano()
			rl.limiters.Range(func(key, value interface{}) bool {
				entry := value.(*agentEntry)
				if entry.lastSeen.Load() < cutoff {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}
