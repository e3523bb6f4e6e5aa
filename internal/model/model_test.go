package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompanyTypeValid(t *testing.T) {
	assert.True(t, CompanyPublic.Valid())
	assert.True(t, CompanyUnknown.Valid())
	assert.False(t, CompanyType("charity").Valid())
	assert.False(t, CompanyType("").Valid())
}

func TestReviewStatusValid(t *testing.T) {
	assert.True(t, ReviewPending.Valid())
	assert.True(t, ReviewReviewed.Valid())
	assert.False(t, ReviewStatus("archived").Valid())
}

func TestMonitorDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Monitor{
		GroupName:         "akira",
		StartDate:         now.Add(-48 * time.Hour),
		PollIntervalHours: 6,
		Active:            true,
	}

	assert.True(t, base.Due(now), "never polled")

	recent := now.Add(-time.Hour)
	m := base
	m.LastPollAt = &recent
	assert.False(t, m.Due(now), "polled within the interval")

	old := now.Add(-7 * time.Hour)
	m.LastPollAt = &old
	assert.True(t, m.Due(now), "interval elapsed")

	m = base
	m.Active = false
	assert.False(t, m.Due(now))

	m = base
	m.StartDate = now.Add(24 * time.Hour)
	assert.False(t, m.Due(now), "not started yet")

	m = base
	ended := now.Add(-time.Hour)
	m.EndDate = &ended
	assert.False(t, m.Due(now), "past end date")
}

func TestMonitorExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	m := Monitor{CreatedAt: now.Add(-40 * 24 * time.Hour), AutoExpireDays: 30}
	assert.True(t, m.Expired(now))

	m.AutoExpireDays = 60
	assert.False(t, m.Expired(now))

	m.AutoExpireDays = 0
	assert.False(t, m.Expired(now), "zero means never expire")
}
