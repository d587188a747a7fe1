package models

import (
	"fmt"
	"time"
)

// Weekday is a teaching day of the school week.
type Weekday string

const (
	Sunday    Weekday = "SUNDAY"
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
)

// SchoolDays is the ordered teaching week.
var SchoolDays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday}

const (
	// PeriodsPerDay is the number of teaching periods per day.
	PeriodsPerDay = 7

	firstPeriodStart = 7 * time.Hour
	periodStride     = 50 * time.Minute
	periodLength     = 45 * time.Minute
)

// TimeSlot is one (day, period) cell of the fixed weekly catalog.
type TimeSlot struct {
	ID        string  `json:"id"`
	Day       Weekday `json:"day"`
	Period    int     `json:"period"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
}

// TimeSlotID renders the catalog key for day and period, e.g. "SUN-1".
func TimeSlotID(day Weekday, period int) string {
	return fmt.Sprintf("%s-%d", string(day)[:3], period)
}

// DefaultTimeSlots returns the fixed catalog ordered by day then period.
func DefaultTimeSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, len(SchoolDays)*PeriodsPerDay)
	for _, day := range SchoolDays {
		for p := 1; p <= PeriodsPerDay; p++ {
			start := firstPeriodStart + time.Duration(p-1)*periodStride
			slots = append(slots, TimeSlot{
				ID:        TimeSlotID(day, p),
				Day:       day,
				Period:    p,
				StartTime: clock(start),
				EndTime:   clock(start + periodLength),
			})
		}
	}
	return slots
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// SessionKind distinguishes regular teaching from standby coverage.
type SessionKind string

const (
	SessionBasic   SessionKind = "BASIC"
	SessionStandby SessionKind = "STANDBY"
)

// ClassSession places a (teacher, class, subject) triple on a time slot.
type ClassSession struct {
	ID         string      `db:"id" json:"id"`
	BatchID    string      `db:"batch_id" json:"batch_id,omitempty"`
	TeacherID  string      `db:"teacher_id" json:"teacher_id"`
	ClassID    string      `db:"class_id" json:"class_id"`
	SubjectID  string      `db:"subject_id" json:"subject_id"`
	TimeSlotID string      `db:"time_slot_id" json:"time_slot_id"`
	Kind       SessionKind `db:"kind" json:"kind"`
	IsLocked   bool        `db:"is_locked" json:"is_locked"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// ClassSessionDetail adds resolved names for export and display.
type ClassSessionDetail struct {
	ClassSession
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// Unresolved demand reasons.
const (
	ReasonNoSlot    = "no_slot"
	ReasonNoTeacher = "no_teacher"
)

// UnresolvedDemand is one (class, subject, repetition) the generator could not place.
type UnresolvedDemand struct {
	ClassID   string `db:"class_id" json:"class_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	Reason    string `db:"reason" json:"reason"`
}

// TimetableStatus tracks the persisted state of a generated batch.
type TimetableStatus string

const (
	TimetableStatusDraft TimetableStatus = "DRAFT"
)

// TimetableBatch is a saved generation run.
type TimetableBatch struct {
	ID              string          `db:"id" json:"id"`
	Status          TimetableStatus `db:"status" json:"status"`
	Seed            int64           `db:"seed" json:"seed"`
	SessionCount    int             `db:"session_count" json:"session_count"`
	UnresolvedCount int             `db:"unresolved_count" json:"unresolved_count"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
