// Package ratelimit enforces global safety ceilings on discovery
// sessions and the external calls they make. This is not per-tenant
// throttling — it exists so a runaway loop can't burn through a
// provider's API budget in an afternoon.
package ratelimit

import (
	"sync"
	"time"
)

// Limits configures the ceilings the limiter enforces.
type Limits struct {
	MaxConcurrentSessions int `json:"max_concurrent_sessions"`
	MaxSessionsPerDay     int `json:"max_sessions_per_day"`
	MaxSearchPerSession   int `json:"max_search_per_session"`
	MaxLLMPerSession      int `json:"max_llm_per_session"`
}

type sessionCounters struct {
	search int
	llm    int
}

// Limiter is a process-wide, mutex-guarded counter set. Grounded on the
// original rate limiter's single global lock protecting a small set of
// in-memory maps — there is no per-tenant sharding here, intentionally.
type Limiter struct {
	mu       sync.Mutex
	limits   Limits
	active   map[string]struct{}
	daily    int
	dailyDay time.Time
	sessions map[string]*sessionCounters
	now      func() time.Time
}

// New constructs a Limiter with the given ceilings.
func New(limits Limits) *Limiter {
	return &Limiter{
		limits:   limits,
		active:   make(map[string]struct{}),
		dailyDay: time.Now(),
		sessions: make(map[string]*sessionCounters),
		now:      time.Now,
	}
}

func (l *Limiter) resetDailyIfNeeded() {
	today := l.now()
	if today.YearDay() != l.dailyDay.YearDay() || today.Year() != l.dailyDay.Year() {
		l.dailyDay = today
		l.daily = 0
	}
}

// CanStartSession reports whether a new session may begin, and if not,
// the human-readable reason.
func (l *Limiter) CanStartSession() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyIfNeeded()

	if len(l.active) >= l.limits.MaxConcurrentSessions {
		return false, "max concurrent sessions reached, try again later"
	}
	if l.daily >= l.limits.MaxSessionsPerDay {
		return false, "daily session limit reached, resets at midnight"
	}
	return true, ""
}

// StartSession registers a new active session and its per-session
// counters.
func (l *Limiter) StartSession(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyIfNeeded()
	l.active[sessionID] = struct{}{}
	l.daily++
	l.sessions[sessionID] = &sessionCounters{}
}

// EndSession releases a session's slot and discards its counters.
func (l *Limiter) EndSession(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, sessionID)
	delete(l.sessions, sessionID)
}

// CheckSearch reports whether a session may issue another search call.
// A session with no registered counters (already ended, or never
// started) is allowed through rather than rejected — the limiter
// guards cost, not session lifecycle correctness.
func (l *Limiter) CheckSearch(sessionID string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.sessions[sessionID]
	if !ok {
		return true, ""
	}
	if c.search >= l.limits.MaxSearchPerSession {
		return false, "search query limit reached for this session"
	}
	return true, ""
}

// IncrementSearch records a search call against the session's counter.
func (l *Limiter) IncrementSearch(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.sessions[sessionID]; ok {
		c.search++
	}
}

// CheckLLM reports whether a session may issue another LLM call.
func (l *Limiter) CheckLLM(sessionID string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.sessions[sessionID]
	if !ok {
		return true, ""
	}
	if c.llm >= l.limits.MaxLLMPerSession {
		return false, "LLM call limit reached for this session"
	}
	return true, ""
}

// IncrementLLM records an LLM call against the session's counter.
func (l *Limiter) IncrementLLM(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.sessions[sessionID]; ok {
		c.llm++
	}
}

// Stats is a point-in-time usage snapshot for the ops status endpoint.
type Stats struct {
	ActiveSessions int    `json:"active_sessions"`
	DailySessions  int    `json:"daily_sessions"`
	Limits         Limits `json:"limits"`
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyIfNeeded()
	return Stats{
		ActiveSessions: len(l.active),
		DailySessions:  l.daily,
		Limits:         l.limits,
	}
}
