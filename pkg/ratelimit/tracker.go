package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrQuotaExhausted is returned by Wait while the quota is critical.
var ErrQuotaExhausted = errors.New("api quota exhausted")

// DefaultThrottleDelay is the pause applied per request in the warning band.
const DefaultThrottleDelay = time.Second

var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "listings_api_quota_remaining",
		Help: "Requests remaining in the current listings API quota window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_rate_limit_blocks_total",
		Help: "Total number of requests refused because the quota was critical",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the quota was low",
	})
)

// Tracker shares the API quota through Redis and gates requests on it.
type Tracker struct {
	redis    *redis.Client
	logger   zerolog.Logger
	throttle time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThrottleDelay sets the pause applied in the warning band.
func WithThrottleDelay(d time.Duration) Option {
	return func(t *Tracker) {
		t.throttle = d
	}
}

// NewTracker creates a new quota tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		redis:    redisClient,
		logger:   logger,
		throttle: DefaultThrottleDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// defaultState is assumed while no quota has been reported.
func defaultState() *QuotaState {
	now := time.Now()
	return &QuotaState{
		Remaining:  DefaultRemaining,
		ResetAt:    now,
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// GetState reads the shared quota state. Keys expire with the window, so a
// missing state means the quota has reset.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	vals, err := t.redis.MGet(ctx, RedisKeyRemaining, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}
	if vals[0] == nil {
		return defaultState(), nil
	}

	state := &QuotaState{}
	if state.Remaining, err = parseInt(vals[0]); err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	reset, err := parseInt(vals[1])
	if err != nil {
		return nil, fmt.Errorf("parse reset timestamp: %w", err)
	}
	state.ResetAt = time.Unix(int64(reset), 0)
	if s, ok := vals[2].(string); ok {
		if state.LastUpdate, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}
	state.UpdateHealth()
	return state, nil
}

func parseInt(v any) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.Atoi(s)
}

// UpdateFromHeaders stores the quota reported by an API response.
// Responses without quota headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}
	if resetSeconds < 0 {
		resetSeconds = 0
	}

	now := time.Now()
	state := &QuotaState{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	// Expire one second after the window so a reset needs no new response.
	ttl := time.Duration(resetSeconds+1) * time.Second
	_, err = t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, RedisKeyRemaining, remain, ttl)
		pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
		pipe.Set(ctx, RedisKeyLastUpdate, now.UTC().Format(time.RFC3339Nano), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().Int("remaining", remain).Time("reset_at", state.ResetAt).
			Msg("API quota CRITICAL - requests will be refused")
	case state.NeedsThrottling():
		t.logger.Warn().Int("remaining", remain).Time("reset_at", state.ResetAt).
			Msg("API quota low - requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", remain).Bool("is_healthy", state.IsHealthy).
			Msg("API quota updated")
	}
	return nil
}

// decide returns the delay to apply before a request, or ErrQuotaExhausted.
func (t *Tracker) decide(state *QuotaState) (time.Duration, error) {
	if state.NeedsCriticalBlock() {
		return 0, fmt.Errorf("%w: %d remaining, resets in %s",
			ErrQuotaExhausted, state.Remaining, state.TimeUntilReset().Round(time.Second))
	}
	if state.NeedsThrottling() {
		return t.throttle, nil
	}
	return 0, nil
}

// Wait gates one request. It returns ErrQuotaExhausted while the quota is
// critical, pauses in the warning band, and returns ctx.Err() if ctx ends
// during the pause.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get quota state: %w", err)
	}

	delay, err := t.decide(state)
	if err != nil {
		rateLimitBlocksTotal.Inc()
		t.logger.Error().Int("remaining", state.Remaining).Dur("reset_in", state.TimeUntilReset()).
			Msg("API quota critical - refusing request")
		return err
	}
	if delay == 0 {
		return nil
	}

	rateLimitThrottlesTotal.Inc()
	t.logger.Warn().Int("remaining", state.Remaining).Dur("delay", delay).Msg("API quota low - throttling request")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
