package dto

import "github.com/noah-isme/sma-standby-api/internal/models"

// GenerateTimetableRequest asks for a timetable proposal. Empty ID lists select all.
type GenerateTimetableRequest struct {
	ClassIDs    []string `json:"classIds" validate:"omitempty,dive,required"`
	SubjectIDs  []string `json:"subjectIds" validate:"omitempty,dive,required"`
	Seed        *int64   `json:"seed"`
	MaxAttempts int      `json:"maxAttempts" validate:"omitempty,min=1,max=10000"`
}

// GenerateTimetableResponse returns the previewed proposal.
type GenerateTimetableResponse struct {
	ProposalID string                    `json:"proposalId"`
	Seed       int64                     `json:"seed"`
	Sessions   []models.ClassSession     `json:"sessions"`
	Unresolved []models.UnresolvedDemand `json:"unresolved"`
	Attempts   int                       `json:"attempts"`
}

// SaveTimetableRequest persists a proposal as a batch.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

// LockSessionRequest pins or releases a saved session.
type LockSessionRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

// TimetableSessionsResponse is a saved batch with resolved session names.
type TimetableSessionsResponse struct {
	Batch      models.TimetableBatch       `json:"batch"`
	Slots      []models.TimeSlot           `json:"slots"`
	Sessions   []models.ClassSessionDetail `json:"sessions"`
	Unresolved []models.UnresolvedDemand   `json:"unresolved"`
}
