package service

import (
	"time"

	"github.com/noah-isme/sma-standby-api/internal/models"
)

// RosterState holds the teachers of one school week with their mutable counters.
// It is owned by the caller and is not safe for concurrent mutation.
type RosterState struct {
	WeekStart time.Time        `json:"week_start"`
	Teachers  []models.Teacher `json:"teachers"`
	index     map[string]int
}

// RosterSnapshot is a deep copy of a RosterState used for whole-batch undo.
type RosterSnapshot struct {
	WeekStart time.Time        `json:"week_start"`
	Teachers  []models.Teacher `json:"teachers"`
}

// NewRosterState wraps teachers for weekStart. The slice is owned by the roster afterwards.
func NewRosterState(weekStart time.Time, teachers []models.Teacher) *RosterState {
	r := &RosterState{WeekStart: weekStart, Teachers: teachers}
	r.reindex()
	return r
}

// SeedRoster builds a fresh week: quotas are derived from the rank table, the
// weekly load is zeroed and the waiting capacity is refilled.
func SeedRoster(weekStart time.Time, teachers []models.Teacher, table RankTable) (*RosterState, error) {
	seeded := make([]models.Teacher, len(teachers))
	for i, t := range teachers {
		q, err := table.Quota(t.Rank, t.Specialization)
		if err != nil {
			return nil, err
		}
		t.WeeklyQuota = q.Weekly
		t.WaitingQuota = q.Waiting
		t.CurrentWeeklyLoad = 0
		t.RemainingWaitingPeriods = q.Waiting
		t.IsAvailable = t.Active
		seeded[i] = t
	}
	return NewRosterState(weekStart, seeded), nil
}

func (r *RosterState) reindex() {
	r.index = make(map[string]int, len(r.Teachers))
	for i, t := range r.Teachers {
		r.index[t.ID] = i
	}
}

// Teacher returns a pointer into the roster so callers mutate it in place.
func (r *RosterState) Teacher(id string) (*models.Teacher, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return &r.Teachers[i], true
}

// MarkUnavailable excludes the teacher from standby allocation.
func (r *RosterState) MarkUnavailable(id string) bool {
	t, ok := r.Teacher(id)
	if !ok {
		return false
	}
	t.IsAvailable = false
	return true
}

// Snapshot deep-copies the roster.
func (r *RosterState) Snapshot() RosterSnapshot {
	return RosterSnapshot{WeekStart: r.WeekStart, Teachers: cloneTeachers(r.Teachers)}
}

// Restore replaces the roster contents with snapshot.
func (r *RosterState) Restore(snapshot RosterSnapshot) {
	r.WeekStart = snapshot.WeekStart
	r.Teachers = cloneTeachers(snapshot.Teachers)
	r.reindex()
}

// Counters renders the persisted counter rows of the roster.
func (r *RosterState) Counters() []models.TeacherWeekCounter {
	out := make([]models.TeacherWeekCounter, 0, len(r.Teachers))
	for _, t := range r.Teachers {
		out = append(out, models.TeacherWeekCounter{
			WeekStart:               r.WeekStart,
			TeacherID:               t.ID,
			WeeklyQuota:             t.WeeklyQuota,
			WaitingQuota:            t.WaitingQuota,
			CurrentWeeklyLoad:       t.CurrentWeeklyLoad,
			RemainingWaitingPeriods: t.RemainingWaitingPeriods,
			IsAvailable:             t.IsAvailable,
		})
	}
	return out
}

func cloneTeachers(in []models.Teacher) []models.Teacher {
	if in == nil {
		return nil
	}
	out := make([]models.Teacher, len(in))
	for i, t := range in {
		if t.Subjects != nil {
			t.Subjects = append([]string(nil), t.Subjects...)
		}
		if t.Phone != nil {
			phone := *t.Phone
			t.Phone = &phone
		}
		out[i] = t
	}
	return out
}

// WeekStartOf returns the Sunday that opens the school week containing d, at UTC midnight.
func WeekStartOf(d time.Time) time.Time {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}
