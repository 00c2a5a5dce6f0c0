// Package admission gates asynchronous job submission.
//
// Every submission is checked in a fixed order inside one critical section:
//
//  1. per-client requests in the current one-minute window
//  2. per-client jobs that have not yet reached a terminal state
//  3. global submissions since the last 00:00 UTC
//
// The first failing check decides the denial and its Retry-After. Counters are
// only updated when every check passes. An admitted submission holds one
// concurrency slot for its client until the returned Ticket is released, which
// the scheduler does exactly once when the job finishes (or the caller does
// when submission fails after admission).
package admission

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Reasons reported in RateLimitedError.
const (
	ReasonPerMinute  = "too many requests per minute"
	ReasonConcurrent = "too many concurrent jobs"
	ReasonDaily      = "daily request limit reached"
)

// concurrentRetry is the Retry-After hint for concurrency denials. Job
// completion time is unknown, so clients are asked to poll again shortly.
const concurrentRetry = 5 * time.Second

const window = time.Minute

// RateLimitedError is returned when a submission is denied.
type RateLimitedError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %s)", e.Reason, e.RetryAfter)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1.
func (e *RateLimitedError) RetryAfterSeconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// Ticket represents an admitted submission's concurrency slot.
type Ticket interface {
	// Release frees the slot. Calls after the first are no-ops.
	Release()
	// Refund undoes the admission for a submission that turned out not to
	// create a job: the per-minute and daily counts it took are returned and
	// the slot is released. Counts from an earlier window or day are left
	// alone. Calls after the first are no-ops.
	Refund()
}

// Admitter decides whether a client may submit a job now.
type Admitter interface {
	Admit(clientID string) (Ticket, error)
}

// Limits configures a Limiter. A zero or negative limit disables that check.
type Limits struct {
	PerMinute  int
	Concurrent int
	Daily      int
}

type clientState struct {
	windowStart time.Time
	count       int
	active      int
}

// Limiter is the in-memory Admitter. Safe for concurrent use.
type Limiter struct {
	limits Limits
	now    func() time.Time

	mu         sync.Mutex
	clients    map[string]*clientState
	dailyCount int
	dailyReset time.Time
	sweepN     int
}

// NewLimiter returns a Limiter using the wall clock.
func NewLimiter(l Limits) *Limiter {
	return newLimiter(l, time.Now)
}

func newLimiter(l Limits, now func() time.Time) *Limiter {
	return &Limiter{
		limits:     l,
		now:        now,
		clients:    make(map[string]*clientState),
		dailyReset: nextMidnightUTC(now()),
	}
}

// Admit runs the three checks and, on success, records the request and
// reserves a concurrency slot.
func (l *Limiter) Admit(clientID string) (Ticket, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	if !now.Before(l.dailyReset) {
		l.dailyCount = 0
		l.dailyReset = nextMidnightUTC(now)
	}

	cs, ok := l.clients[clientID]
	if !ok {
		cs = &clientState{}
		l.clients[clientID] = cs
	}
	if cs.windowStart.IsZero() || now.Sub(cs.windowStart) >= window {
		cs.windowStart = now
		cs.count = 0
	}

	if l.limits.PerMinute > 0 && cs.count >= l.limits.PerMinute {
		denials.WithLabelValues("per_minute").Inc()
		return nil, &RateLimitedError{Reason: ReasonPerMinute, RetryAfter: cs.windowStart.Add(window).Sub(now)}
	}
	if l.limits.Concurrent > 0 && cs.active >= l.limits.Concurrent {
		denials.WithLabelValues("concurrent").Inc()
		return nil, &RateLimitedError{Reason: ReasonConcurrent, RetryAfter: concurrentRetry}
	}
	if l.limits.Daily > 0 && l.dailyCount >= l.limits.Daily {
		denials.WithLabelValues("daily").Inc()
		return nil, &RateLimitedError{Reason: ReasonDaily, RetryAfter: l.dailyReset.Sub(now)}
	}

	cs.count++
	cs.active++
	l.dailyCount++
	admitted.Inc()
	windowStart, dailyReset := cs.windowStart, l.dailyReset
	return &ticket{
		release: func() { l.release(clientID) },
		refund:  func() { l.refund(clientID, windowStart, dailyReset) },
	}, nil
}

// Active reports the reserved concurrency slots of a client.
func (l *Limiter) Active(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cs, ok := l.clients[clientID]; ok {
		return cs.active
	}
	return 0
}

func (l *Limiter) release(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cs, ok := l.clients[clientID]; ok && cs.active > 0 {
		cs.active--
	}
}

func (l *Limiter) refund(clientID string, windowStart, dailyReset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cs, ok := l.clients[clientID]; ok && cs.windowStart.Equal(windowStart) && cs.count > 0 {
		cs.count--
	}
	if l.dailyReset.Equal(dailyReset) && l.dailyCount > 0 {
		l.dailyCount--
	}
	refunds.Inc()
}

// sweep drops idle clients every 1000 admissions to bound memory. Callers
// hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	l.sweepN++
	if l.sweepN < 1000 {
		return
	}
	l.sweepN = 0
	for id, cs := range l.clients {
		if cs.active == 0 && now.Sub(cs.windowStart) >= window {
			delete(l.clients, id)
		}
	}
}

type ticket struct {
	once       sync.Once
	refundOnce sync.Once
	release    func()
	refund     func()
}

func (t *ticket) Release() { t.once.Do(t.release) }

func (t *ticket) Refund() {
	t.refundOnce.Do(t.refund)
	t.Release()
}

func nextMidnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// Noop admits everything. Used when rate limiting is disabled.
type Noop struct{}

func (Noop) Admit(string) (Ticket, error) { return noopTicket{}, nil }

type noopTicket struct{}

func (noopTicket) Release() {}
func (noopTicket) Refund()  {}
