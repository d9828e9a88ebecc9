package firestore

import (
	"context"
	"sync"
	"time"
)

const (
	limiterWindow = time.Second
	limiterGrace  = 100 * time.Millisecond
)

// Limiter states reported by Status.
const (
	LimiterInactive   = "INACTIVO"
	LimiterNormal     = "NORMAL"
	LimiterProtecting = "PROTEGIENDO"
)

// RateLimiter admits at most max calls in any one-second window. A caller arriving at a full
// window sleeps until the oldest admission leaves it and then checks again; nothing is queued.
type RateLimiter struct {
	mu       sync.Mutex
	max      int
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	admitted []time.Time
}

// LimiterStatus is a snapshot of the current window.
type LimiterStatus struct {
	State         string    `json:"estado"`
	Current       int       `json:"contadorActual"`
	MaxPerSecond  int       `json:"maxConsultasPorSegundo"`
	WindowElapsed int64     `json:"ventanaTiempoMs"`
	Since         time.Time `json:"timestamp"`
}

// NewRateLimiter allows at most maxPerSecond calls per one-second window.
func NewRateLimiter(maxPerSecond int) *RateLimiter {
	if maxPerSecond <= 0 {
		maxPerSecond = 3
	}
	return &RateLimiter{
		max:   maxPerSecond,
		now:   time.Now,
		sleep: sleepContext,
	}
}

// WithClock replaces the clock and sleeper, mainly for tests.
func (l *RateLimiter) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now != nil {
		l.now = now
	}
	if sleep != nil {
		l.sleep = sleep
	}
	return l
}

// Wait blocks until the caller may proceed.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.pruneLocked(now)
		if len(l.admitted) < l.max {
			l.admitted = append(l.admitted, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.admitted[0].Add(limiterWindow).Sub(now) + limiterGrace
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Status reports the state of the current window.
func (l *RateLimiter) Status() LimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	if len(l.admitted) == 0 {
		return LimiterStatus{State: LimiterInactive, MaxPerSecond: l.max}
	}

	state := LimiterNormal
	if len(l.admitted) >= l.max {
		state = LimiterProtecting
	}
	oldest := l.admitted[0]
	return LimiterStatus{
		State:         state,
		Current:       len(l.admitted),
		MaxPerSecond:  l.max,
		WindowElapsed: now.Sub(oldest).Milliseconds(),
		Since:         oldest,
	}
}

// pruneLocked drops admissions that no longer fall inside the window ending at now.
func (l *RateLimiter) pruneLocked(now time.Time) {
	keep := 0
	for keep < len(l.admitted) && now.Sub(l.admitted[keep]) >= limiterWindow {
		keep++
	}
	if keep > 0 {
		l.admitted = append(l.admitted[:0], l.admitted[keep:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
