package model

import "time"

// Monitor is a recurring polling task for one ransomware group's leak site.
type Monitor struct {
	ID                string     `json:"id"`
	GroupName         string     `json:"group_name"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	PollIntervalHours int        `json:"poll_interval_hours"`
	AutoExpireDays    int        `json:"auto_expire_days,omitempty"`
	Active            bool       `json:"is_active"`
	LastPollAt        *time.Time `json:"last_poll_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// MonitorCreate carries a new monitor definition.
type MonitorCreate struct {
	GroupName         string     `json:"group_name"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	PollIntervalHours int        `json:"poll_interval_hours"`
	AutoExpireDays    int        `json:"auto_expire_days"`
}

// Due reports whether the monitor should be polled at the given time: it is
// active, past its start date, and either never polled or past the poll
// interval.
func (m Monitor) Due(now time.Time) bool {
	if !m.Active || now.Before(m.StartDate) {
		return false
	}
	if m.EndDate != nil && now.After(*m.EndDate) {
		return false
	}
	if m.LastPollAt == nil {
		return true
	}
	interval := time.Duration(m.PollIntervalHours) * time.Hour
	return now.Sub(*m.LastPollAt) >= interval
}

// Expired reports whether the monitor has outlived its auto-expire window.
func (m Monitor) Expired(now time.Time) bool {
	if m.AutoExpireDays <= 0 {
		return false
	}
	return now.Sub(m.CreatedAt) > time.Duration(m.AutoExpireDays)*24*time.Hour
}
