package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter()
	limit := settings.RateLimit{Enabled: true, Window: time.Minute, Max: 3}
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, rl.Allow("42", start, limit))
	assert.True(t, rl.Allow("42", start.Add(10*time.Second), limit))
	assert.True(t, rl.Allow("42", start.Add(20*time.Second), limit))
	assert.False(t, rl.Allow("42", start.Add(30*time.Second), limit), "fourth call inside the window")
	assert.Equal(t, 3, rl.count("42"), "rejected call is not recorded")

	// first call leaves the window exactly at start+60s
	assert.True(t, rl.Allow("42", start.Add(time.Minute), limit))
	assert.Equal(t, 3, rl.count("42"))
	assert.False(t, rl.Allow("42", start.Add(time.Minute+time.Second), limit))
}

func TestRateLimiterPerSender(t *testing.T) {
	rl := NewRateLimiter()
	limit := settings.RateLimit{Enabled: true, Window: time.Minute, Max: 1}
	now := time.Now()

	assert.True(t, rl.Allow("a", now, limit))
	assert.False(t, rl.Allow("a", now, limit))
	assert.True(t, rl.Allow("b", now, limit))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter()
	limit := settings.RateLimit{Enabled: false, Window: time.Minute, Max: 1}
	now := time.Now()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("a", now, limit))
	}
	assert.Zero(t, rl.count("a"))
}

// count returns how many requests are recorded for the sender.
func (rl *RateLimiter) count(senderID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows[senderID])
}
