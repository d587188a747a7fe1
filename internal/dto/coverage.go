package dto

import "github.com/noah-isme/sma-standby-api/internal/models"

// UncoveredPeriodRequest is one period left without a teacher.
type UncoveredPeriodRequest struct {
	PeriodNumber int    `json:"periodNumber" validate:"required,min=1,max=7"`
	ClassName    string `json:"className" validate:"required"`
	Subject      string `json:"subject" validate:"required"`
}

// AllocateCoverageRequest submits an absence event for substitute allocation.
type AllocateCoverageRequest struct {
	AbsentTeacherID string                   `json:"absentTeacherId" validate:"required"`
	Date            string                   `json:"date" validate:"required,datetime=2006-01-02"`
	Periods         []UncoveredPeriodRequest `json:"periods" validate:"required,min=1,dive"`
	Notify          bool                     `json:"notify"`
	Channel         string                   `json:"channel" validate:"omitempty,oneof=whatsapp sms"`
}

// StartWeekRequest resets the weekly counters.
type StartWeekRequest struct {
	WeekStart string `json:"weekStart" validate:"required,datetime=2006-01-02"`
}

// AssignmentQuery filters the assignment listing.
type AssignmentQuery struct {
	From      string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	TeacherID string `form:"teacherId"`
	BatchID   string `form:"batchId"`
}

// NotifyRequest selects the channel for a single notification.
type NotifyRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=whatsapp sms"`
}

// RosterResponse returns the counters of a week.
type RosterResponse struct {
	WeekStart string           `json:"weekStart"`
	Teachers  []models.Teacher `json:"teachers"`
}

// UndoCoverageResponse reports the outcome of discarding an allocation batch.
type UndoCoverageResponse struct {
	BatchID  string `json:"batchId"`
	Removed  int64  `json:"removed"`
	Restored int    `json:"restoredTeachers"`
}
