package ai

import (
	"sync"
	"time"
)

// Limits caps Gemini usage for one API tier.
type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
	RequestsPerDay    int
}

var tierLimits = map[string]Limits{
	"free":  {RequestsPerMinute: 10, TokensPerMinute: 250_000, RequestsPerDay: 250},
	"tier1": {RequestsPerMinute: 1000, TokensPerMinute: 1_000_000, RequestsPerDay: 10_000},
	"tier2": {RequestsPerMinute: 2000, TokensPerMinute: 4_000_000, RequestsPerDay: 50_000},
}

// limitsForTier falls back to the free tier for unknown names.
func limitsForTier(tier string) Limits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits["free"]
}

type usage struct {
	start    time.Time
	requests int
	tokens   int
}

func (u *usage) roll(now time.Time, span time.Duration) {
	if now.Sub(u.start) >= span {
		*u = usage{start: now}
	}
}

// Quota tracks usage in a minute window and a day window so requests that
// would certainly be refused upstream fail fast instead.
type Quota struct {
	mu     sync.Mutex
	limits Limits
	now    func() time.Time
	minute usage
	day    usage
}

func NewQuota(limits Limits) *Quota {
	return &Quota{limits: limits, now: time.Now}
}

func (q *Quota) rollLocked() {
	now := q.now()
	q.minute.roll(now, time.Minute)
	q.day.roll(now, 24*time.Hour)
}

// Allow reports whether one more request of roughly tokens tokens fits.
func (q *Quota) Allow(tokens int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollLocked()
	return q.minute.requests < q.limits.RequestsPerMinute &&
		q.minute.tokens+tokens <= q.limits.TokensPerMinute &&
		q.day.requests < q.limits.RequestsPerDay
}

// Record counts one completed request.
func (q *Quota) Record(tokens int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollLocked()
	q.minute.requests++
	q.minute.tokens += tokens
	q.day.requests++
	q.day.tokens += tokens
}
