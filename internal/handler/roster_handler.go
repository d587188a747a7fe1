package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/service"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
	"github.com/noah-isme/sma-standby-api/pkg/response"
)

type rosterReader interface {
	Load(ctx context.Context, day time.Time) (*service.RosterState, error)
}

type weekStarter interface {
	StartWeek(ctx context.Context, day time.Time) (*service.RosterState, error)
}

// RosterHandler exposes the weekly counters. Resets go through weeks so they
// serialize with allocations of the same week.
type RosterHandler struct {
	roster rosterReader
	weeks  weekStarter
}

// NewRosterHandler constructs a RosterHandler.
func NewRosterHandler(roster rosterReader, weeks weekStarter) *RosterHandler {
	return &RosterHandler{roster: roster, weeks: weeks}
}

// StartWeek godoc
// @Summary Start a school week
// @Description Zeroes weekly loads and refills standby capacity for every active teacher. Allocations of that week can no longer be undone.
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body dto.StartWeekRequest true "Any day of the week"
// @Success 201 {object} response.Envelope
// @Router /roster/weeks [post]
func (h *RosterHandler) StartWeek(c *gin.Context) {
	var req dto.StartWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid week payload"))
		return
	}
	day, err := time.Parse(dateLayout, req.WeekStart)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekStart must use YYYY-MM-DD"))
		return
	}
	roster, err := h.weeks.StartWeek(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rosterResponse(roster))
}

// Get godoc
// @Summary Weekly roster counters
// @Tags Roster
// @Produce json
// @Param weekStart path string true "Any day of the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /roster/weeks/{weekStart} [get]
func (h *RosterHandler) Get(c *gin.Context) {
	day, err := time.Parse(dateLayout, c.Param("weekStart"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekStart must use YYYY-MM-DD"))
		return
	}
	roster, err := h.roster.Load(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rosterResponse(roster), nil)
}

func rosterResponse(roster *service.RosterState) dto.RosterResponse {
	return dto.RosterResponse{WeekStart: roster.WeekStart.Format(dateLayout), Teachers: roster.Teachers}
}
