package models

import "time"

// UncoveredPeriod is a single period left without a teacher by an absence.
type UncoveredPeriod struct {
	PeriodNumber int    `json:"period_number"`
	ClassName    string `json:"class_name"`
	Subject      string `json:"subject"`
}

// AbsentTeacherEvent lists the periods an absent teacher leaves uncovered on a day.
type AbsentTeacherEvent struct {
	AbsentTeacherID string            `json:"absent_teacher_id"`
	Date            time.Time         `json:"date"`
	Periods         []UncoveredPeriod `json:"periods"`
}
