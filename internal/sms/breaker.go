package sms

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is closed, open or half-open.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
	}
}

// Breaker trips after FailureThreshold consecutive failures, stays open for
// OpenTimeout, then lets trial calls through until SuccessThreshold succeed.
type Breaker struct {
	mu           sync.Mutex
	cfg          BreakerConfig
	now          func() time.Time
	state        BreakerState
	failures     int
	successes    int
	lastFailedAt time.Time
}

func NewBreaker(cfg BreakerConfig, now func() time.Time) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{cfg: cfg, now: now}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

func (b *Breaker) currentLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.lastFailedAt) >= b.cfg.OpenTimeout {
		b.state = BreakerHalfOpen
		b.successes = 0
	}
	return b.state
}

func (b *Breaker) Execute(fn func() error) error {
	if b.State() == BreakerOpen {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// callers hold mu
func (b *Breaker) onFailure() {
	b.failures++
	b.lastFailedAt = b.now()
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.state = BreakerOpen
			b.successes = 0
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.failures = 0
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	}
}
