// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package ratelimit implements the keyed token-bucket gate that runs in
// front of every credential operation.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults admit 100 attempts per key in any 15 minute window.
const (
	DefaultLimit           = 100
	DefaultWindow          = 15 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Config configures a Limiter. Zero values select the defaults.
type Config struct {
	// Limit is the bucket capacity and the number of tokens refilled per Window.
	Limit int

	// Window is the period over which Limit tokens refill.
	Window time.Duration

	// CleanupInterval is how often idle keys are evicted. A key is idle once
	// its bucket would be full again.
	CleanupInterval time.Duration

	// Now overrides the clock.
	Now func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter is a token-bucket rate limiter keyed by arbitrary strings, such as
// "account:<id>" or "ip:<addr>". It is safe for concurrent use.
//
// A background goroutine evicts idle keys. Call Close to stop it.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   float64
	rate    float64 // tokens per second
	window  time.Duration
	now     func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup

	keys       prometheus.Gauge
	rejections prometheus.Counter
}

// New creates a Limiter and starts its cleanup goroutine.
func New(cfg Config) *Limiter {
	return newLimiter(cfg, nil)
}

// NewWithRegistry creates a Limiter whose key gauge and rejection counter
// are registered with reg.
func NewWithRegistry(cfg Config, reg prometheus.Registerer) *Limiter {
	return newLimiter(cfg, reg)
}

func newLimiter(cfg Config, reg prometheus.Registerer) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	l := &Limiter{
		buckets: make(map[string]*bucket),
		limit:   float64(cfg.Limit),
		rate:    float64(cfg.Limit) / cfg.Window.Seconds(),
		window:  cfg.Window,
		now:     cfg.Now,
		stop:    make(chan struct{}),
	}

	if reg != nil {
		l.keys = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_ratelimit_keys",
			Help: "Current number of tracked rate limit keys",
		})
		l.rejections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_ratelimit_rejections_total",
			Help: "Attempts rejected by the rate limiter",
		})
		reg.MustRegister(l.keys, l.rejections)
	}

	l.wg.Add(1)
	go l.cleanupLoop(cfg.CleanupInterval)

	return l
}

// Allow consumes one token for key. When the bucket is empty it returns
// false and the wait until the next token.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.limit, lastCheck: now}
		l.buckets[key] = b
		if l.keys != nil {
			l.keys.Set(float64(len(l.buckets)))
		}
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(l.limit, b.tokens+elapsed*l.rate)
	}
	b.lastCheck = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	if l.rejections != nil {
		l.rejections.Inc()
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup evicts keys whose buckets have fully refilled.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := l.now().Add(-l.window)
	for key, b := range l.buckets {
		if b.lastCheck.Before(threshold) {
			delete(l.buckets, key)
		}
	}
	if l.keys != nil {
		l.keys.Set(float64(len(l.buckets)))
	}
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Close stops the cleanup goroutine and waits for it to exit.
func (l *Limiter) Close() {
	close(l.stop)
	l.wg.Wait()
}
