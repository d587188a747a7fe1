package models

import "time"

// WaitingAssignment records a substitute covering one period of an absent teacher.
// Only the notification and confirmation flags change after creation.
type WaitingAssignment struct {
	ID                      string    `db:"id" json:"id"`
	BatchID                 string    `db:"batch_id" json:"batch_id"`
	AbsentTeacherID         string    `db:"absent_teacher_id" json:"absent_teacher_id"`
	AbsentTeacherName       string    `db:"absent_teacher_name" json:"absent_teacher_name"`
	SubstituteTeacherID     string    `db:"substitute_teacher_id" json:"substitute_teacher_id"`
	SubstituteTeacherName   string    `db:"substitute_teacher_name" json:"substitute_teacher_name"`
	Date                    time.Time `db:"date" json:"date"`
	PeriodNumber            int       `db:"period_number" json:"period_number"`
	ClassName               string    `db:"class_name" json:"class_name"`
	Subject                 string    `db:"subject" json:"subject"`
	IsNotificationSent      bool      `db:"is_notification_sent" json:"is_notification_sent"`
	IsConfirmedBySubstitute bool      `db:"is_confirmed_by_substitute" json:"is_confirmed_by_substitute"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
}

// WaitingAssignmentFilter narrows assignment listings.
type WaitingAssignmentFilter struct {
	From                *time.Time
	To                  *time.Time
	SubstituteTeacherID string
	BatchID             string
}

// CoverageBatch is the outcome of allocating one absence event.
type CoverageBatch struct {
	ID          string              `json:"id"`
	WeekStart   time.Time           `json:"week_start"`
	Assignments []WaitingAssignment `json:"assignments"`
	Uncovered   []UncoveredPeriod   `json:"uncovered"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Complete reports whether every uncovered period received a substitute.
func (b CoverageBatch) Complete() bool {
	return len(b.Uncovered) == 0
}
