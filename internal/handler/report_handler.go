package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	"github.com/noah-isme/sma-standby-api/internal/service"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
	"github.com/noah-isme/sma-standby-api/pkg/response"
)

type reportService interface {
	WaitingSummary(ctx context.Context, query dto.WaitingReportQuery) ([]models.WaitingSummary, error)
	Export(ctx context.Context, query dto.ExportQuery) (*service.ExportFile, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Waiting godoc
// @Summary Waiting period summary
// @Tags Reports
// @Produce json
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Param granularity query string false "week or month"
// @Success 200 {object} response.Envelope
// @Router /reports/waiting [get]
func (h *ReportHandler) Waiting(c *gin.Context) {
	var query dto.WaitingReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report query"))
		return
	}
	summaries, err := h.reports.WaitingSummary(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Export godoc
// @Summary Download a report file
// @Tags Reports
// @Produce application/octet-stream
// @Param kind query string true "waiting or timetable"
// @Param format query string true "xlsx, csv or pdf"
// @Param from query string false "From date, waiting exports"
// @Param to query string false "To date, waiting exports"
// @Param granularity query string false "week or month"
// @Param batchId query string false "Timetable batch, timetable exports"
// @Success 200 {file} binary
// @Router /reports/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.reports.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}
