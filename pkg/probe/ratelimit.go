package probe

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedSender wraps a Sender with a token-bucket probe budget so
// long sequential loops (extraction runs into the hundreds of probes) stay
// polite to the target.
type RateLimitedSender struct {
	inner   Sender
	limiter *rate.Limiter
}

// NewRateLimited wraps s with a probes-per-second cap. A non-positive rps
// returns s unchanged.
func NewRateLimited(s Sender, rps float64) Sender {
	if rps <= 0 {
		return s
	}
	return &RateLimitedSender{inner: s, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Send waits for a token, then delegates. Cancellation during the wait
// returns the context error without sending.
func (s *RateLimitedSender) Send(ctx context.Context, req *Request) (*Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Send(ctx, req)
}
