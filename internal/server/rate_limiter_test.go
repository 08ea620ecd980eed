package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allows_Burst_Then_Refuses(t *testing.T) {
	req := require.New(t)
	limiter := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		req.True(limiter.Allow(), "message %d", i)
	}
	req.False(limiter.Allow())
}

func TestRateLimiter_Refills(t *testing.T) {
	req := require.New(t)
	limiter := newRateLimiter(2, 20*time.Millisecond)

	req.True(limiter.Allow())
	req.True(limiter.Allow())
	req.False(limiter.Allow())

	req.Eventually(limiter.Allow, time.Second, 5*time.Millisecond)
}

func TestRateLimiter_Sanitizes_Arguments(t *testing.T) {
	req := require.New(t)
	limiter := newRateLimiter(0, 0)

	req.Equal(1, limiter.Burst())
	req.True(limiter.Allow())
}
