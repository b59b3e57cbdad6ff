package domain

import "time"

// ClickSession aggregates a burst of click activity for one user. A user has
// at most one active session; it ends on an explicit close or when the
// inactivity timeout elapses.
type ClickSession struct {
	SessionID          string        `json:"sessionId"`
	UserID             string        `json:"userId"`
	StartedAt          time.Time     `json:"startedAt"`
	LastActivityAt     time.Time     `json:"lastActivityAt"`
	EndedAt            *time.Time    `json:"endedAt,omitempty"`
	Duration           time.Duration `json:"duration"`
	ClickCount         int           `json:"clickCount"`
	UniqueLinksClicked int           `json:"uniqueLinksClicked"`
	ConversionCount    int           `json:"conversionCount"`
	TotalRevenue       float64       `json:"totalRevenue"`
	TotalCommission    float64       `json:"totalCommission"`
	IsActive           bool          `json:"isActive"`
}

// Expired reports whether the session saw no activity for at least timeout.
func (s *ClickSession) Expired(now time.Time, timeout time.Duration) bool {
	return !s.LastActivityAt.Add(timeout).After(now)
}

// End closes the session at the given instant.
func (s *ClickSession) End(at time.Time) {
	s.EndedAt = &at
	s.Duration = at.Sub(s.StartedAt)
	s.IsActive = false
}
