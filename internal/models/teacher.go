package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher represents an instructor together with the counters of the active week.
type Teacher struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Phone          *string        `db:"phone" json:"phone,omitempty"`
	Rank           Rank           `db:"rank" json:"rank"`
	Specialization string         `db:"specialization" json:"specialization"`
	Subjects       pq.StringArray `db:"subjects" json:"subjects"`
	WeeklyQuota    int            `db:"weekly_quota" json:"weekly_quota"`
	WaitingQuota   int            `db:"waiting_quota" json:"waiting_quota"`
	Active         bool           `db:"active" json:"active"`

	// Week counters. Only populated when loaded through a roster.
	CurrentWeeklyLoad       int  `db:"current_weekly_load" json:"current_weekly_load"`
	RemainingWaitingPeriods int  `db:"remaining_waiting_periods" json:"remaining_waiting_periods"`
	IsAvailable             bool `db:"is_available" json:"is_available"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Teaches reports whether subjectName is in the teacher's subject list.
func (t Teacher) Teaches(subjectName string) bool {
	for _, s := range t.Subjects {
		if s == subjectName {
			return true
		}
	}
	return false
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Rank      Rank
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeacherWeekCounter is the persisted per-week counter row of a teacher.
type TeacherWeekCounter struct {
	WeekStart               time.Time `db:"week_start" json:"week_start"`
	TeacherID               string    `db:"teacher_id" json:"teacher_id"`
	WeeklyQuota             int       `db:"weekly_quota" json:"weekly_quota"`
	WaitingQuota            int       `db:"waiting_quota" json:"waiting_quota"`
	CurrentWeeklyLoad       int       `db:"current_weekly_load" json:"current_weekly_load"`
	RemainingWaitingPeriods int       `db:"remaining_waiting_periods" json:"remaining_waiting_periods"`
	IsAvailable             bool      `db:"is_available" json:"is_available"`
}
