package fetcher

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a per-platform token bucket guarding all outbound calls to that
// platform. One instance per platform, shared by every sync task; admission
// is serialized by the underlying limiter and never exceeds the configured
// rate in any rolling window (burst of one).
type Limiter struct {
	lim *rate.Limiter
}

func NewLimiter(perSecond float64) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Acquire blocks until a token is available or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.lim.Wait(ctx)
}
