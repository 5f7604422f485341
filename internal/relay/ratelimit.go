package relay

import (
	"sync"
	"time"

	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
)

// RateLimiter is a per-sender sliding-window request log.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
	}
}

// Allow prunes the sender's window to entries younger than limit.Window and
// records now when fewer than limit.Max remain. A rejected call changes
// nothing but the pruning. A disabled limit admits without recording.
func (rl *RateLimiter) Allow(senderID string, now time.Time, limit settings.RateLimit) bool {
	if !limit.Enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.windows[senderID]
	keep := 0
	for _, ts := range window {
		if now.Sub(ts) < limit.Window {
			window[keep] = ts
			keep++
		}
	}
	window = window[:keep]

	if len(window) >= limit.Max {
		rl.windows[senderID] = window
		return false
	}

	rl.windows[senderID] = append(window, now)
	return true
}
