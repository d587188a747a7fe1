package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sma-standby-api/internal/models"
)

// PeriodKey buckets t by granularity: ISO week "2026-W43" or month "2026-10".
func PeriodKey(t time.Time, granularity models.Granularity) string {
	if granularity == models.GranularityMonth {
		return t.Format("2006-01")
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// AggregateWaiting folds assignments into per-teacher summaries for each
// bucket, ordered by bucket then substitute name.
func AggregateWaiting(assignments []models.WaitingAssignment, granularity models.Granularity) []models.WaitingSummary {
	type key struct{ period, teacher string }
	buckets := make(map[key]*models.WaitingSummary)

	for _, a := range assignments {
		k := key{period: PeriodKey(a.Date, granularity), teacher: a.SubstituteTeacherID}
		sum, ok := buckets[k]
		if !ok {
			sum = &models.WaitingSummary{Period: k.period, TeacherID: a.SubstituteTeacherID, TeacherName: a.SubstituteTeacherName}
			buckets[k] = sum
		}
		sum.Assignments++
		if a.IsNotificationSent {
			sum.Notified++
		}
		if a.IsConfirmedBySubstitute {
			sum.Confirmed++
		}
	}

	out := make([]models.WaitingSummary, 0, len(buckets))
	for _, sum := range buckets {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		if out[i].TeacherName != out[j].TeacherName {
			return out[i].TeacherName < out[j].TeacherName
		}
		return out[i].TeacherID < out[j].TeacherID
	})
	return out
}
