package alerting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a message is dropped to protect the chat from bursts.
var ErrRateLimited = errors.New("alerting: rate limit exceeded, message dropped")

// RateLimited drops messages once the send budget is exhausted.
type RateLimited struct {
	next    Notifier
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewRateLimited allows perMinute messages per minute with the given burst.
// A non-positive perMinute disables limiting and returns next unchanged.
func NewRateLimited(next Notifier, perMinute, burst int, logger zerolog.Logger) Notifier {
	if perMinute <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:  logger.With().Str("component", "alert_ratelimit").Logger(),
	}
}

// Send forwards text when the limiter allows it.
func (r *RateLimited) Send(ctx context.Context, text string) error {
	if !r.limiter.Allow() {
		r.logger.Warn().Int("length", len(text)).Msg("message dropped by rate limit")
		return ErrRateLimited
	}
	return r.next.Send(ctx, text)
}

var _ Notifier = (*RateLimited)(nil)
