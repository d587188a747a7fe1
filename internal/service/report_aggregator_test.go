package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-standby-api/internal/models"
)

func waiting(sub, name string, date time.Time, notified, confirmed bool) models.WaitingAssignment {
	return models.WaitingAssignment{
		SubstituteTeacherID:     sub,
		SubstituteTeacherName:   name,
		Date:                    date,
		IsNotificationSent:      notified,
		IsConfirmedBySubstitute: confirmed,
	}
}

func TestPeriodKey(t *testing.T) {
	d := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-W43", PeriodKey(d, models.GranularityWeek))
	assert.Equal(t, "2026-10", PeriodKey(d, models.GranularityMonth))
	// ISO weeks can belong to the previous year.
	assert.Equal(t, "2026-W53", PeriodKey(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), models.GranularityWeek))
}

func TestAggregateWaitingWeekly(t *testing.T) {
	mon := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)
	nextWeek := mon.AddDate(0, 0, 7)

	got := AggregateWaiting([]models.WaitingAssignment{
		waiting("b", "Budi", mon, true, true),
		waiting("a", "Ali", mon, true, false),
		waiting("b", "Budi", tue, false, false),
		waiting("a", "Ali", nextWeek, true, true),
	}, models.GranularityWeek)

	require.Len(t, got, 3)
	assert.Equal(t, models.WaitingSummary{Period: "2026-W43", TeacherID: "a", TeacherName: "Ali", Assignments: 1, Notified: 1}, got[0])
	assert.Equal(t, models.WaitingSummary{Period: "2026-W43", TeacherID: "b", TeacherName: "Budi", Assignments: 2, Notified: 1, Confirmed: 1}, got[1])
	assert.Equal(t, "2026-W44", got[2].Period)
}

func TestAggregateWaitingMonthly(t *testing.T) {
	got := AggregateWaiting([]models.WaitingAssignment{
		waiting("a", "Ali", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), false, false),
		waiting("a", "Ali", time.Date(2026, 10, 30, 0, 0, 0, 0, time.UTC), false, false),
		waiting("a", "Ali", time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), false, false),
	}, models.GranularityMonth)

	require.Len(t, got, 2)
	assert.Equal(t, "2026-10", got[0].Period)
	assert.Equal(t, 2, got[0].Assignments)
	assert.Equal(t, "2026-11", got[1].Period)
	assert.Empty(t, AggregateWaiting(nil, models.GranularityMonth))
}
