package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/middleware"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
	"github.com/noah-isme/sma-standby-api/pkg/response"
)

const dateLayout = "2006-01-02"

type coverageService interface {
	Allocate(ctx context.Context, req dto.AllocateCoverageRequest) (*models.CoverageBatch, error)
	Undo(ctx context.Context, batchID string) (*dto.UndoCoverageResponse, error)
	Assignments(ctx context.Context, query dto.AssignmentQuery) ([]models.WaitingAssignment, error)
}

type notificationService interface {
	Preview(ctx context.Context, id, substituteID string, channel models.Channel, schoolName string) (string, error)
	Dispatch(ctx context.Context, id string, channel models.Channel) error
	Confirm(ctx context.Context, id, substituteID string) (*models.WaitingAssignment, error)
}

// CoverageHandler serves substitute allocation and notification routes.
type CoverageHandler struct {
	coverage      coverageService
	notifications notificationService
}

// NewCoverageHandler constructs a CoverageHandler.
func NewCoverageHandler(coverage coverageService, notifications notificationService) *CoverageHandler {
	return &CoverageHandler{coverage: coverage, notifications: notifications}
}

// Allocate godoc
// @Summary Allocate substitutes for an absence
// @Description Periods that no teacher can take are listed under uncovered.
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.AllocateCoverageRequest true "Absence event"
// @Success 201 {object} response.Envelope
// @Router /coverage/allocations [post]
func (h *CoverageHandler) Allocate(c *gin.Context) {
	var req dto.AllocateCoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	batch, err := h.coverage.Allocate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, batch, nil, map[string]interface{}{"complete": batch.Complete()})
}

// Undo godoc
// @Summary Undo an allocation batch
// @Tags Coverage
// @Produce json
// @Param batchId path string true "Allocation batch ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /coverage/allocations/{batchId} [delete]
func (h *CoverageHandler) Undo(c *gin.Context) {
	res, err := h.coverage.Undo(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Assignments godoc
// @Summary List waiting assignments
// @Tags Coverage
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param teacherId query string false "Substitute teacher ID"
// @Param batchId query string false "Allocation batch ID"
// @Success 200 {object} response.Envelope
// @Router /coverage/assignments [get]
func (h *CoverageHandler) Assignments(c *gin.Context) {
	var query dto.AssignmentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment query"))
		return
	}
	if teacherID := teacherScope(c); teacherID != "" {
		query.TeacherID = teacherID
	}
	list, err := h.coverage.Assignments(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Notify godoc
// @Summary Queue a substitute notification
// @Tags Coverage
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.NotifyRequest false "Channel override"
// @Success 202 {object} response.Envelope
// @Router /coverage/assignments/{id}/notify [post]
func (h *CoverageHandler) Notify(c *gin.Context) {
	var req dto.NotifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notify payload"))
			return
		}
	}
	channel := models.Channel(req.Channel)
	if channel != "" && !channel.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "channel must be whatsapp or sms"))
		return
	}
	if err := h.notifications.Dispatch(c.Request.Context(), c.Param("id"), channel); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"id": c.Param("id"), "queued": true}, nil)
}

// Confirm godoc
// @Summary Confirm a waiting assignment
// @Description Teachers may only confirm their own assignments.
// @Tags Coverage
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /coverage/assignments/{id}/confirm [post]
func (h *CoverageHandler) Confirm(c *gin.Context) {
	assignment, err := h.notifications.Confirm(c.Request.Context(), c.Param("id"), teacherScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Message godoc
// @Summary Preview a notification message
// @Tags Coverage
// @Produce json
// @Param id path string true "Assignment ID"
// @Param channel query string false "whatsapp or sms"
// @Param school query string false "School name override"
// @Success 200 {object} response.Envelope
// @Router /coverage/assignments/{id}/message [get]
func (h *CoverageHandler) Message(c *gin.Context) {
	channel := models.Channel(strings.ToLower(c.Query("channel")))
	msg, err := h.notifications.Preview(c.Request.Context(), c.Param("id"), teacherScope(c), channel, strings.TrimSpace(c.Query("school")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"channel": channel, "message": msg}, nil)
}

// teacherScope returns the caller's ID when a teacher is calling; teachers only
// see their own assignments. Admins get an empty scope.
func teacherScope(c *gin.Context) string {
	if claims, ok := middleware.CurrentUser(c); ok && claims.Role == models.RoleTeacher {
		return claims.UserID
	}
	return ""
}
