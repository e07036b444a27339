package model

import "time"

// RotationPolicy bounds how long and how many invocations a Session may live
// for before the Session Manager requires rotation.
type RotationPolicy struct {
	MaxRequests int
	MaxAge      time.Duration
}

// Session is a live association between a service name (or working
// directory, for the Persistent adapter) and an agent-side session id
// allowing resumption.
type Session struct {
	SessionID    string
	ServiceName  string
	CreatedAt    time.Time
	LastUsedAt   time.Time
	RequestCount int
	Busy         bool // only meaningful for the Persistent backend
}

// ShouldRotate reports whether s has exceeded policy's request count or age
// bound, evaluated against now.
func (s *Session) ShouldRotate(policy RotationPolicy, now time.Time) bool {
	if policy.MaxRequests > 0 && s.RequestCount >= policy.MaxRequests {
		return true
	}
	if policy.MaxAge > 0 && now.Sub(s.CreatedAt) >= policy.MaxAge {
		return true
	}
	return false
}
