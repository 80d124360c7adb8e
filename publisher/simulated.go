package publisher

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFailureRate is the fraction of simulated publishes that fail.
const DefaultFailureRate = 0.1

// Simulated pretends to publish. Each call succeeds with probability
// 1-FailureRate after an optional latency.
type Simulated struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	failureRate float64
	latency     time.Duration
	now         func() time.Time
}

// SimulatedOption configures a Simulated publisher.
type SimulatedOption func(*Simulated)

// WithFailureRate sets the failure probability, clamped to [0, 1].
func WithFailureRate(r float64) SimulatedOption {
	return func(s *Simulated) {
		switch {
		case r < 0:
			r = 0
		case r > 1:
			r = 1
		}
		s.failureRate = r
	}
}

// WithLatency makes every publish wait d (or until ctx is done).
func WithLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) {
		s.latency = d
	}
}

// WithSeed makes the outcome sequence deterministic.
func WithSeed(seed uint64) SimulatedOption {
	return func(s *Simulated) {
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewSimulated returns a simulated publisher with DefaultFailureRate.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		rnd:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		failureRate: DefaultFailureRate,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish implements Publisher.
func (s *Simulated) Publish(ctx context.Context, req Request) (Result, error) {
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	roll := s.rnd.Float64()
	s.mu.Unlock()

	if roll < s.failureRate {
		return Result{}, fmt.Errorf("%w: %s did not accept post %s", ErrPublishFailed, req.Platform, req.PostID)
	}
	return Result{
		Platform:    req.Platform,
		ExternalID:  fmt.Sprintf("%s_%s", req.Platform, uuid.NewString()[:8]),
		PublishedAt: s.now().UTC(),
	}, nil
}

var _ Publisher = (*Simulated)(nil)
