package domain

import "time"

const (
	MinLeadMinutes = 1
	MaxLeadMinutes = 180
)

// User is the recipient of reminders.
type User struct {
	ID              int64
	ExternalID      int64 // Telegram chat id
	FirstName       string
	TZ              string // IANA name; empty means the default zone
	LeadMinutes     int
	Language        string
	LastSummaryDate Date // local date of the last delivered daily summary
	CreatedAt       time.Time
}

// ClampLead bounds a lead-time preference to [MinLeadMinutes, MaxLeadMinutes].
func ClampLead(m int) int {
	if m < MinLeadMinutes {
		return MinLeadMinutes
	}
	if m > MaxLeadMinutes {
		return MaxLeadMinutes
	}
	return m
}

// Lead returns the user's reminder lead time, falling back to def when unset.
func (u *User) Lead(def int) time.Duration {
	m := u.LeadMinutes
	if m == 0 {
		m = def
	}
	return time.Duration(ClampLead(m)) * time.Minute
}
